package serve

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dSync/agent"
	cmdUtil "github.com/ValentinKolb/dSync/cmd/util"
	"github.com/ValentinKolb/dSync/exchange"
	"github.com/ValentinKolb/dSync/gossip"
	"github.com/ValentinKolb/dSync/lib/codec"
	"github.com/ValentinKolb/dSync/lib/logging"
	"github.com/ValentinKolb/dSync/lib/peers"
	"github.com/ValentinKolb/dSync/lib/registry"
	"github.com/ValentinKolb/dSync/lib/store/cqueue"
	"github.com/ValentinKolb/dSync/lib/store/mstore"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
)

// serveConfig collects everything the agent needs to run. It is filled from
// flags and environment variables in processConfig.
type serveConfig struct {
	NodeID        string
	Endpoint      string
	AgentEndpoint string
	Codec         string
	Provider      string
	Peers         []string
	TTL           time.Duration
	PurgeInterval time.Duration
	QueueSize     int
	LogLevel      string
	Debug         bool
	Gossip        gossip.Config
}

var (
	serveCmdConfig = &serveConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dSync agent",
		Long:    `Start the dSync agent with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DSYNC_<flag> (e.g. DSYNC_PUSH_INTERVAL=500)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

// --------------------------------------------------------------------------
// Variant registries
// --------------------------------------------------------------------------

// providerFactory defers provider construction until the configuration is
// known, since providers need different parts of it.
type providerFactory func(c *serveConfig) peers.IPeerProvider

var (
	codecRegistry    = registry.New[codec.ISnapshotCodec]("codec")
	providerRegistry = registry.New[providerFactory]("peer provider")
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitEnvConfig)

	// register the selectable variants
	codecRegistry.Register("json", codec.NewJSONCodec())
	codecRegistry.Register("gob", codec.NewGOBCodec())
	providerRegistry.Register("static", func(c *serveConfig) peers.IPeerProvider {
		return peers.NewStaticProvider(c.Peers)
	})
	providerRegistry.Register("mdns", func(c *serveConfig) peers.IPeerProvider {
		return peers.NewMDNSProvider(c.NodeID, c.Gossip.LocalPort)
	})

	// add flags
	key := "push-interval"
	ServeCmd.PersistentFlags().Int64(key, 500, cmdUtil.WrapString("Interval in milliseconds between publish (push) gossip rounds"))

	key = "pull-interval"
	ServeCmd.PersistentFlags().Int64(key, 1000, cmdUtil.WrapString("Interval in milliseconds between pull gossip rounds"))

	key = "r0"
	ServeCmd.PersistentFlags().Int(key, 3, cmdUtil.WrapString("Number of peers sampled per gossip round (fan-out)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 2000, cmdUtil.WrapString("Timeout in milliseconds for a single peer request"))

	key = "target-port"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Exchange port assumed for peers that carry no port of their own (0 = use the local exchange port)"))

	key = "ttl"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Default time-to-live in milliseconds applied to entries without an expiry (0 = entries live forever)"))

	key = "purge-interval"
	ServeCmd.PersistentFlags().Int64(key, 30000, cmdUtil.WrapString("Interval in milliseconds between expired-entry sweeps"))

	key = "queue-size"
	ServeCmd.PersistentFlags().Int(key, cqueue.DefaultCapacity, cmdUtil.WrapString("Capacity of the commit queue buffering pulled snapshots before merge"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:7946", cmdUtil.WrapString("The address on which the peer exchange API will listen"))

	key = "agent-endpoint"
	ServeCmd.PersistentFlags().String(key, "127.0.0.1:7947", cmdUtil.WrapString("The address on which the local application API will listen"))

	key = "node-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Unique identifier of this agent (default: random uuid)"))

	key = "peers"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated list of peer addresses in the format 'host' or 'host:port' (static provider only)"))

	key = "provider"
	ServeCmd.PersistentFlags().String(key, "static", cmdUtil.WrapString(fmt.Sprintf("Peer membership provider to use (%s)", strings.Join(providerRegistry.Tags(), ", "))))

	key = "debug"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Enable per-request logging on the HTTP endpoints"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and converts it to the agent configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	millis := func(key string) time.Duration {
		return time.Duration(viper.GetInt64(key)) * time.Millisecond
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.AgentEndpoint = viper.GetString("agent-endpoint")
	serveCmdConfig.Codec = viper.GetString("codec")
	serveCmdConfig.Provider = viper.GetString("provider")
	serveCmdConfig.TTL = millis("ttl")
	serveCmdConfig.PurgeInterval = millis("purge-interval")
	serveCmdConfig.QueueSize = viper.GetInt("queue-size")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.Debug = viper.GetBool("debug")

	// parse node id, default to a random uuid
	if id := viper.GetString("node-id"); id != "" {
		serveCmdConfig.NodeID = id
	} else {
		serveCmdConfig.NodeID = uuid.NewString()
	}

	// parse peer list
	serveCmdConfig.Peers = nil
	if list := viper.GetString("peers"); list != "" {
		for _, addr := range strings.Split(list, ",") {
			serveCmdConfig.Peers = append(serveCmdConfig.Peers, strings.TrimSpace(addr))
		}
	}

	// derive the local exchange port for the peer port fallback chain
	localPort := 0
	if _, portStr, found := strings.Cut(serveCmdConfig.Endpoint, ":"); found {
		if _, err := fmt.Sscanf(portStr, "%d", &localPort); err != nil {
			return fmt.Errorf("invalid endpoint %s: %v", serveCmdConfig.Endpoint, err)
		}
	}

	serveCmdConfig.Gossip = gossip.Config{
		PushInterval: millis("push-interval"),
		PullInterval: millis("pull-interval"),
		FanOut:       viper.GetInt("r0"),
		Timeout:      millis("timeout"),
		TargetPort:   viper.GetInt("target-port"),
		LocalPort:    localPort,
	}

	if serveCmdConfig.PurgeInterval <= 0 {
		return fmt.Errorf("purge interval must be positive")
	}
	if serveCmdConfig.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive")
	}

	return serveCmdConfig.Gossip.Validate()
}

// run wires the store, queue, gossip loops and endpoints together and blocks
// serving the exchange API
func run(_ *cobra.Command, _ []string) error {
	conf := serveCmdConfig

	// initialize all loggers with the configured level
	logging.InitLoggers(conf.LogLevel)

	// resolve the configured variants
	snapshotCodec, err := codecRegistry.Resolve(conf.Codec)
	if err != nil {
		return err
	}
	newProvider, err := providerRegistry.Resolve(conf.Provider)
	if err != nil {
		return err
	}

	// store and purger
	s := mstore.NewMemoryStore(snapshotCodec, &mstore.Options{
		DefaultTTL: conf.TTL,
	})
	s.Activate(conf.PurgeInterval)
	defer s.Close()

	// peer membership and sampling
	provider := newProvider(conf)
	if err := provider.Init(); err != nil {
		return err
	}
	sampler, err := peers.NewSampler(provider, conf.Gossip.FanOut)
	if err != nil {
		return err
	}

	// commit queue decoupling pulls from merges
	queue := cqueue.New(s, conf.QueueSize)
	queue.Start()
	defer queue.Close()

	// gossip loops
	client := exchange.NewClient(conf.Gossip.Timeout)
	publisher := gossip.NewPublisher(s, sampler, client, conf.Gossip)
	receiver := gossip.NewReceiver(s, queue, sampler, client, conf.Gossip)
	publisher.Start()
	defer publisher.Stop()
	receiver.Start()
	defer receiver.Stop()

	// application-facing endpoint
	go func() {
		if err := agent.NewServer(s, conf.AgentEndpoint, conf.Debug).Listen(); err != nil {
			agent.Logger.Errorf("agent endpoint failed: %v", err)
		}
	}()

	exchange.Logger.Infof("agent %s ready", conf.NodeID)
	return exchange.NewServer(s, conf.Endpoint, conf.Debug).Listen()
}

package kv

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ValentinKolb/dSync/cmd/util"
	"github.com/ValentinKolb/dSync/lib/codec"
	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	agentStore *agentClient

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform key-value operations against a local agent",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitEnvConfig)

	// Add common client flags to the KV command
	key := "agent"
	KeyValueCommands.PersistentFlags().String(key, "127.0.0.1:7947", util.WrapString("The address of the local agent endpoint"))

	key = "timeout"
	KeyValueCommands.PersistentFlags().Int(key, 10, util.WrapString("The timeout in seconds of the client"))

	key = "ttl"
	KeyValueCommands.PersistentFlags().Int64(key, 0, util.WrapString("Time-to-live in milliseconds for written entries (0 = no expiry)"))

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the agent client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	// parse the codec, must match the agent's configuration
	var c codec.ISnapshotCodec
	switch viper.GetString("codec") {
	case "json":
		c = codec.NewJSONCodec()
	case "gob":
		c = codec.NewGOBCodec()
	default:
		return fmt.Errorf("invalid codec %s", viper.GetString("codec"))
	}

	agentStore = &agentClient{
		base:  "http://" + viper.GetString("agent"),
		codec: c,
		ttl:   time.Duration(viper.GetInt64("ttl")) * time.Millisecond,
		http: &http.Client{
			Timeout: time.Duration(viper.GetInt("timeout")) * time.Second,
		},
	}
	return nil
}

// --------------------------------------------------------------------------
// Agent client
// --------------------------------------------------------------------------

// agentClient talks to the read/write surface of a local agent.
type agentClient struct {
	base  string
	codec codec.ISnapshotCodec
	ttl   time.Duration
	http  *http.Client
}

// Set writes a single entry stamped with the local wall clock.
func (c *agentClient) Set(key string, value []byte) error {
	now := time.Now().UnixMilli()
	entry := store.Entry{Value: value, CreatedAt: now}
	if c.ttl > 0 {
		entry.ExpiresAt = now + c.ttl.Milliseconds()
	}

	blob, err := c.codec.Serialize(codec.Batch{key: entry})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPut, c.base+"/kv", bytes.NewReader(blob))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("agent rejected write (%d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// Get reads a single value, reporting whether the key exists.
func (c *agentClient) Get(key string) ([]byte, bool, error) {
	resp, err := c.http.Get(c.base + "/kv/" + url.PathEscape(key))
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		return body, true, err
	case http.StatusNotFound:
		return nil, false, nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("agent read failed (%d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}
}

// GetOr reads a single value, falling back to def for absent keys.
func (c *agentClient) GetOr(key string, def []byte) ([]byte, error) {
	resp, err := c.http.Get(c.base + "/kv/" + url.PathEscape(key) + "?default=" + url.QueryEscape(string(def)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("agent read failed (%d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return io.ReadAll(resp.Body)
}

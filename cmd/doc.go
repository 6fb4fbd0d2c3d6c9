// Package cmd implements the command-line interface for the dSync state
// replication agent. It provides a hierarchical command structure with
// operations for running and inspecting an agent.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations against a running agent (get, set, perf)
//   - serve: Commands for starting and configuring a dSync agent
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dsync -help for a list of all commands.
package cmd

package kv

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := args[1]
			if err := agentStore.Set(key, []byte(value)); err != nil {
				return err
			} else {
				fmt.Println("set successfully")
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if def, _ := cmd.Flags().GetString("default"); def != "" {
				resp, err := agentStore.GetOr(key, []byte(def))
				if err != nil {
					return err
				}
				fmt.Printf("key=%s, resp=%s\n", key, resp)
				return nil
			}
			if resp, ok, err := agentStore.Get(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			}
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if _, ok, err := agentStore.Get(key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v\n", key, ok)
			}
			return nil
		},
	}
)

func init() {
	getCmd.Flags().String("default", "", "Value to return if the key does not exist")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sekas/sekas/internal/transport"
)

// adminClient dials the node named by --target for the lifetime of one
// admin command, the same one-shot-connection style
// cuemby-warren/pkg/client/client.go's CLI commands use against the
// manager API.
func adminClient(cmd *cobra.Command) (*transport.Client, error) {
	target, _ := cmd.Flags().GetString("target")
	if target == "" {
		return nil, fmt.Errorf("--target ADDR is required")
	}
	return transport.Dial(target)
}

func bindTarget(cmd *cobra.Command) {
	cmd.Flags().String("target", "", "address of any running Sekas node")
}

var cordonCmd = &cobra.Command{
	Use:   "cordon NODE_ID",
	Short: "Mark a node as unschedulable for new replicas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := adminClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		id, err := parseNodeID(args[0])
		if err != nil {
			return err
		}
		if err := c.CordonNode(id); err != nil {
			return err
		}
		fmt.Printf("node %d cordoned\n", id)
		return nil
	},
}

var uncordonCmd = &cobra.Command{
	Use:   "uncordon NODE_ID",
	Short: "Clear a node's cordon",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := adminClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		id, err := parseNodeID(args[0])
		if err != nil {
			return err
		}
		if err := c.UncordonNode(id); err != nil {
			return err
		}
		fmt.Printf("node %d uncordoned\n", id)
		return nil
	},
}

var drainCmd = &cobra.Command{
	Use:   "drain NODE_ID",
	Short: "Begin draining a node's replicas onto other nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := adminClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		id, err := parseNodeID(args[0])
		if err != nil {
			return err
		}
		if err := c.BeginDrain(id); err != nil {
			return err
		}
		fmt.Printf("node %d draining\n", id)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cluster node list and current root leader",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := adminClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		resp, err := c.Info()
		if err != nil {
			return err
		}
		fmt.Printf("root leader: node %d\n", resp.RootLeader)
		for _, n := range resp.Nodes {
			fmt.Printf("  node %d  %s  status=%s  capacity=%d\n", n.ID, n.Addr, n.Status, n.Capacity)
		}
		return nil
	},
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show the count of ongoing background jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := adminClient(cmd)
		if err != nil {
			return err
		}
		defer c.Close()
		resp, err := c.Jobs()
		if err != nil {
			return err
		}
		fmt.Printf("ongoing jobs: %d\n", resp.OngoingCount)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{cordonCmd, uncordonCmd, drainCmd, infoCmd, jobsCmd} {
		bindTarget(c)
	}
}

func parseNodeID(s string) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(s, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("invalid node id %q: %w", s, err)
	}
	return id, nil
}

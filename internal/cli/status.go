package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutu-network/peernet/internal/infra/network"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the running node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var st network.NodeStatus
		if err := callAPI("GET", "/api/status", nil, &st); err != nil {
			return err
		}

		online := "offline"
		if st.Online {
			online = "online"
		}
		fmt.Printf("Node:      %s (%s)\n", st.NodeID, online)
		fmt.Printf("Listening: %s\n", orDash(st.ListenAddr))
		fmt.Printf("Uptime:    %s\n", st.Uptime.Round(time.Second))
		fmt.Printf("Inbound:   %d/%d\n", st.Inbound.Size, st.Inbound.Capacity)
		fmt.Printf("Outbound:  %d/%d\n", st.Outbound.Size, st.Outbound.Capacity)
		fmt.Printf("Seeds:     %s\n", orDash(strings.Join(st.Seeds, ", ")))
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package cli

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tutu-network/peernet/internal/domain"
)

func init() {
	peersCmd.Flags().StringVar(&peersDirection, "direction", "", "Only show inbound or outbound peers")
	peersCmd.AddCommand(peersDisconnectCmd)
	rootCmd.AddCommand(peersCmd)
}

var peersDirection string

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List the peers of the running node",
	Args:  cobra.NoArgs,
	RunE:  runPeers,
}

var peersDisconnectCmd = &cobra.Command{
	Use:   "disconnect <inbound|outbound> <id>",
	Short: "Disconnect one peer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := callAPI("DELETE", "/api/peers/"+args[0]+"/"+args[1], nil, nil); err != nil {
			return err
		}
		fmt.Printf("Disconnected %s peer %s\n", args[0], args[1])
		return nil
	},
}

func runPeers(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if peersDirection != "" {
		q.Set("direction", peersDirection)
	}

	var body struct {
		Peers []domain.PeerInfo `json:"peers"`
	}
	if err := callAPI("GET", "/api/peers", q, &body); err != nil {
		return err
	}
	if len(body.Peers) == 0 {
		fmt.Println("No peers.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDIRECTION\tHOSTNAME\tSTATE\tRECV\tCONNECTED")
	for _, p := range body.Peers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
			p.ID,
			p.Direction,
			p.Hostname,
			p.State,
			p.BytesRecv,
			ago(p.ConnectedAt),
		)
	}
	return w.Flush()
}

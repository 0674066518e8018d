package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tutu-network/peernet/internal/domain"
)

func init() {
	addressesCmd.Flags().StringVar(&addressesDirection, "direction", "", "Only show inbound or outbound addresses")
	addressesCmd.Flags().IntVar(&addressesLimit, "limit", 50, "Maximum rows, 0 for all")
	addressesCmd.AddCommand(addressesForgetCmd)
	rootCmd.AddCommand(addressesCmd)
}

var (
	addressesDirection string
	addressesLimit     int
)

var addressesCmd = &cobra.Command{
	Use:     "addresses",
	Aliases: []string{"addrs"},
	Short:   "List the address book of the running node",
	Args:    cobra.NoArgs,
	RunE:    runAddresses,
}

var addressesForgetCmd = &cobra.Command{
	Use:   "forget <host:port>",
	Short: "Remove an address from the address book",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := callAPI("DELETE", "/api/addresses/"+url.PathEscape(args[0]), nil, nil); err != nil {
			return err
		}
		fmt.Printf("Forgot %s\n", args[0])
		return nil
	},
}

func runAddresses(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	if addressesDirection != "" {
		q.Set("direction", addressesDirection)
	}
	q.Set("limit", strconv.Itoa(addressesLimit))

	var body struct {
		Addresses []domain.KnownAddress `json:"addresses"`
	}
	if err := callAPI("GET", "/api/addresses", q, &body); err != nil {
		return err
	}
	if len(body.Addresses) == 0 {
		fmt.Println("Address book is empty.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HOSTNAME\tDIRECTION\tOK\tFAILED\tLAST SEEN")
	for _, a := range body.Addresses {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			a.Hostname,
			a.Direction,
			a.Successes,
			a.Failures,
			ago(a.LastSeen),
		)
	}
	return w.Flush()
}

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"seeddid/internal/approval/models"
	authmodels "seeddid/internal/auth/models"
	"seeddid/internal/messaging"
)

var (
	loginAddress string
	loginKey     string

	requestPeer     string
	requestCompany  string
	requestDataType string
	requestFields   string

	respondReject bool
)

// loginCmd signs in and prints the access token
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with a DID key and print the access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		sig, err := signChallenge(loginKey)
		if err != nil {
			return err
		}
		var session authmodels.Session
		if err := newClient().do(cmd.Context(), http.MethodPost, "/auth/login", authmodels.LoginRequest{
			Address:   loginAddress,
			Signature: sig,
		}, &session); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), session.AccessToken)
		return nil
	},
}

// inboxCmd lists open approval requests
var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List approval requests waiting for an answer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var open []struct {
			models.OpenRequest
			Summary string `json:"summary"`
		}
		if err := newClient().do(cmd.Context(), http.MethodGet, "/approvals", nil, &open); err != nil {
			return err
		}
		if len(open) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no open requests")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CONVERSATION\tREQUEST\tFROM\tCOMPANY\tTYPE\tFIELDS")
		for _, req := range open {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", req.ConversationID, req.RequestID, req.PeerAddress, req.Company, req.DataType, req.Summary)
		}
		return tw.Flush()
	},
}

// requestCmd sends an approval request to a peer
var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Ask a peer to disclose credential fields",
	Long: `Send an approval request. --fields takes a JSON field selector, e.g.

  seedctl request --peer 0xuser --company Acme --type Aadhar \
    --fields '{"name": true, "age": {"operator": "more", "value": 18}}'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var fields models.FieldSelector
		if err := json.Unmarshal([]byte(requestFields), &fields); err != nil {
			return fmt.Errorf("parse --fields: %w", err)
		}
		var receipt messaging.Receipt
		if err := newClient().do(cmd.Context(), http.MethodPost, "/approvals/requests", map[string]any{
			"peer":            requestPeer,
			"company":         requestCompany,
			"dataType":        models.DataType(requestDataType),
			"requestedFields": fields,
		}, &receipt); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent request %s\n", receipt.MessageID)
		return nil
	},
}

// respondCmd approves or rejects an open request. Request ids are only unique
// within a conversation, so both come from the inbox listing.
var respondCmd = &cobra.Command{
	Use:   "respond <conversation-id> <request-id>",
	Short: "Approve (or with --reject, reject) an open request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var receipt messaging.Receipt
		path := "/approvals/" + url.PathEscape(strings.TrimSpace(args[0])) +
			"/" + url.PathEscape(strings.TrimSpace(args[1])) + "/respond"
		if err := newClient().do(cmd.Context(), http.MethodPost, path, map[string]bool{"approved": !respondReject}, &receipt); err != nil {
			return err
		}
		verb := "approved"
		if respondReject {
			verb = "rejected"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, args[1])
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginAddress, "address", "", "wallet address")
	loginCmd.Flags().StringVar(&loginKey, "key", "", "hex DID private key")
	_ = loginCmd.MarkFlagRequired("address")
	_ = loginCmd.MarkFlagRequired("key")

	requestCmd.Flags().StringVar(&requestPeer, "peer", "", "address of the credential holder")
	requestCmd.Flags().StringVar(&requestCompany, "company", "", "name shown to the holder")
	requestCmd.Flags().StringVar(&requestDataType, "type", "", "credential type (Aadhar, Job or a schema name)")
	requestCmd.Flags().StringVar(&requestFields, "fields", "", "JSON field selector")
	for _, name := range []string{"peer", "company", "type", "fields"} {
		_ = requestCmd.MarkFlagRequired(name)
	}

	respondCmd.Flags().BoolVar(&respondReject, "reject", false, "reject instead of approve")
}

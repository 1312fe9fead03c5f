package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/cloudbrowser/internal/attach"
	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/internal/proxy"
	"github.com/shehryarbajwa/cloudbrowser/internal/region"
	"github.com/shehryarbajwa/cloudbrowser/pkg/cloudbrowser"
	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

const shutdownTimeout = 10 * time.Second

func addSpecFlags(cmd *cobra.Command) {
	cmd.Flags().String("region", "", "Region code, e.g. BR (default from config)")
	cmd.Flags().String("profile", "", "Persistent profile ID")
	cmd.Flags().String("url", "", "Target URL hint for region inference")
	cmd.Flags().Duration("timeout", 0, "How long to wait for the session to become ready (default from config)")
}

func specFromFlags(cmd *cobra.Command) (models.SessionSpec, time.Duration) {
	regionCode, _ := cmd.Flags().GetString("region")
	profile, _ := cmd.Flags().GetString("profile")
	url, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return models.SessionSpec{Region: regionCode, ProfileID: profile, URL: url}, timeout
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func shutdown(client *cloudbrowser.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		logging.NewLogger("cli").WithError(err).Warn("shutdown incomplete")
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAcquireCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Acquire a session and hold it until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer shutdown(client)

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			spec, timeout := specFromFlags(cmd)
			h, err := client.Acquire(ctx, spec, timeout)
			if err != nil {
				return err
			}

			endpoint, err := h.Endpoint()
			if err != nil {
				return err
			}
			info := map[string]string{
				"session_id":    h.SessionID(),
				"endpoint":      endpoint,
				"live_view_url": h.LiveViewURL(),
			}

			relayAddr, _ := cmd.Flags().GetString("relay")
			if relayAddr != "" {
				listener, err := net.Listen("tcp", relayAddr)
				if err != nil {
					return fmt.Errorf("failed to listen on %s: %w", relayAddr, err)
				}
				srv := &http.Server{
					Handler:     proxy.NewServer(client.Sessions()).Handler(),
					IdleTimeout: 60 * time.Second,
				}
				go func() {
					if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logging.NewLogger("cli").WithError(err).Error("relay stopped")
					}
				}()
				defer srv.Close()
				info["relay"] = fmt.Sprintf("ws://%s/cdp/%s", listener.Addr(), h.SessionID())
			}

			out := cmd.OutOrStdout()
			if getOptions(cmd).JSONOutput {
				if err := printJSON(out, info); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Session:   %s\n", info["session_id"])
				fmt.Fprintf(out, "Endpoint:  %s\n", info["endpoint"])
				if info["live_view_url"] != "" {
					fmt.Fprintf(out, "Live view: %s\n", info["live_view_url"])
				}
				if info["relay"] != "" {
					fmt.Fprintf(out, "Relay:     %s\n", info["relay"])
				}
				fmt.Fprintln(out, "Press Ctrl+C to release the session.")
			}

			<-ctx.Done()
			return nil
		},
	}
	addSpecFlags(cmd)
	cmd.Flags().String("relay", "", "Serve a local CDP relay on this address, e.g. 127.0.0.1:9222")
	return cmd
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Acquire a session, open a URL in it and print the page title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer shutdown(client)

			attacher := attach.New()
			if err := attacher.Initialize(); err != nil {
				return err
			}
			defer attacher.Stop()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			spec, _ := specFromFlags(cmd)
			if spec.URL == "" {
				spec.URL = args[0]
			}

			return client.With(ctx, spec, func(h *cloudbrowser.Handle) error {
				title, err := attacher.Visit(ctx, h, args[0])
				if err != nil {
					return err
				}
				if getOptions(cmd).JSONOutput {
					return printJSON(cmd.OutOrStdout(), map[string]string{
						"session_id": h.SessionID(),
						"url":        args[0],
						"title":      title,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), title)
				return nil
			})
		},
	}
	addSpecFlags(cmd)
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the backend status of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer shutdown(client)

			st, err := client.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), st)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Session:\t%s\n", args[0])
			fmt.Fprintf(w, "Status:\t%s\n", st.Status)
			if endpoint := st.ControlEndpoint(); endpoint != "" {
				fmt.Fprintf(w, "Endpoint:\t%s\n", endpoint)
			}
			if st.LiveViewURL != "" {
				fmt.Fprintf(w, "Live view:\t%s\n", st.LiveViewURL)
			}
			if st.ErrorMessage != "" {
				fmt.Fprintf(w, "Error:\t%s\n", st.ErrorMessage)
			}
			return w.Flush()
		},
	}
}

func newCloseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "close <session-id>",
		Short: "Close a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer shutdown(client)

			if err := client.CloseSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Closed %s\n", args[0])
			return nil
		},
	}
}

func newBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer shutdown(client)

			balance, err := client.Balance(cmd.Context())
			if err != nil {
				return err
			}
			if getOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), models.BalanceResponse{Balance: balance})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "$%.2f\n", balance)
			return nil
		},
	}
}

func newRegionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List region codes with their locale and timezone",
		RunE: func(cmd *cobra.Command, args []string) error {
			regions := region.NewCatalog().GetRegions()
			if getOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), regions)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REGION\tLOCALE\tTIMEZONE")
			for _, r := range regions {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Region, r.Locale, r.Timezone)
			}
			return w.Flush()
		},
	}
}

func newUsageCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Summarize recorded session usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer shutdown(client)

			limit, _ := cmd.Flags().GetInt("limit")
			totals, recent, err := client.Usage(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if getOptions(cmd).JSONOutput {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"totals": totals,
					"recent": recent,
				})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Sessions:\t%d (%d failed)\n", totals.Sessions, totals.Failed)
			fmt.Fprintf(w, "Duration:\t%s\n", totals.Duration)
			fmt.Fprintf(w, "Bytes:\t%d\n\n", totals.Bytes)
			fmt.Fprintln(w, "SESSION\tREGION\tSTATE\tENDED\tDURATION\tBYTES")
			for _, u := range recent {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
					u.SessionID, u.Region, u.State, u.EndedAt.Format(time.RFC3339), u.Duration, u.Bytes)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int("limit", 10, "Number of recent sessions to show")
	return cmd
}

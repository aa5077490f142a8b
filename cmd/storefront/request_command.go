package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-storefront-gateway/gateway"
	"github.com/jrsteele09/go-storefront-gateway/session"
	"github.com/spf13/cobra"
)

func newRequestCmd(a *app) *cobra.Command {
	var (
		method string
		auth   bool
		data   string
		area   string
	)

	cmd := &cobra.Command{
		Use:   "request PATH",
		Short: "Call the backend with the realm's credentials",
		Long: `Sends one request to the backend. Paths under /admin use the admin realm's
tokens, every other path the user realm's. Failed calls are reported the way a
screen would report them: an expired session or a "failed to load" message.`,
		Example: `  storefront request /services
  storefront request --auth /orders/mine
  storefront request --auth -X POST -d '{"serviceId":"svc-logo"}' /orders`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := gateway.Request{
				Path:         args[0],
				Method:       method,
				RequiresAuth: auth,
			}
			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				req.Body = json.RawMessage(data)
			}

			out := cmd.OutOrStdout()
			verb := strings.ToUpper(method)
			fmt.Fprintf(out, "%s %s\n", colour(methodColors[verb], verb), req.Path)

			resp, err := a.client.Do(cmd.Context(), req)
			if err != nil {
				if area == "" {
					area = strings.Trim(strings.SplitN(args[0], "?", 2)[0], "/")
				}
				ctrl := a.controller(
					session.WithRealm(gateway.RealmFor(req.Path)),
					session.WithNotifier(quietNotifier{}),
				)
				defer ctrl.Close()
				ctrl.HandleAPIError(err, area)
				printState(out, string(gateway.RealmFor(req.Path)), ctrl.State())
				return err
			}

			status := colour(Green, fmt.Sprintf("%d", resp.StatusCode))
			if resp.FromFallback {
				status += colour(Gray, " (offline content)")
			}
			fmt.Fprintln(out, status)
			fmt.Fprintln(out, formatBody(resp))
			return nil
		},
	}
	cmd.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
	cmd.Flags().BoolVar(&auth, "auth", false, "fail unless the realm has a stored token")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringVar(&area, "area", "", "name used in load error messages (default the path)")
	return cmd
}

func formatBody(resp *gateway.Response) string {
	if !resp.IsJSON {
		return resp.Text()
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Body, "", "  "); err != nil {
		return resp.Text()
	}
	return buf.String()
}

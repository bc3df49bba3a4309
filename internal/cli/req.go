package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tansive/unifictl/internal/unifi"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"sigs.k8s.io/yaml"
)

type reqOptions struct {
	method  string
	data    string
	file    string
	set     []string
	site    string
	field   string
	query   []string
	noLogin bool
}

// newReqCmd creates the req command
func newReqCmd() *cobra.Command {
	o := &reqOptions{}
	cmd := &cobra.Command{
		Use:   "req PATH [flags]",
		Short: "Send an authenticated request to the controller",
		Long: `Send a request to the controller API and print the response envelope.
{site} in PATH is replaced with the site from --site or the config file. The request
is sent as GET without a body and as POST with one, unless --method is given.
The output is YAML unless --json is set.

Examples:
  # List connected clients
  unifictl req /api/s/{site}/stat/sta

  # Only the host names
  unifictl req /api/s/{site}/stat/sta --field data.#.hostname

  # Block a client
  unifictl req /api/s/{site}/cmd/stamgr --set cmd=block-sta --set mac=00:11:22:33:44:55

  # Update a network from a YAML file with {{ .ENV.VAR }} placeholders
  unifictl req /api/s/{site}/rest/networkconf/5f0c... --method PUT -f network.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReq(cmd, args[0], o)
		},
	}
	cmd.Flags().StringVarP(&o.method, "method", "X", "", "HTTP method")
	cmd.Flags().StringVarP(&o.data, "data", "d", "", "JSON request body")
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "Read the request body from a JSON or YAML file")
	cmd.Flags().StringArrayVar(&o.set, "set", nil, "Set a body field, key=value (repeatable, key is a JSON path)")
	cmd.Flags().StringArrayVarP(&o.query, "query", "q", nil, "Query parameter, key=value (repeatable)")
	cmd.Flags().StringVarP(&o.site, "site", "s", "", "Site, overrides the config file")
	cmd.Flags().StringVar(&o.field, "field", "", "Print only the value at this gjson path of the response")
	cmd.Flags().BoolVar(&o.noLogin, "no-login", false, "Send the request without logging in first")
	return cmd
}

func runReq(cmd *cobra.Command, path string, o *reqOptions) error {
	cfg := GetConfig()
	site := o.site
	if site == "" {
		site = cfg.SiteName()
	}
	path = strings.ReplaceAll(path, "{site}", site)

	body, err := buildBody(o)
	if err != nil {
		return err
	}
	query, err := parsePairs(o.query)
	if err != nil {
		return err
	}

	req := unifi.Request{
		Path:   path,
		Method: strings.ToUpper(o.method),
		Query:  query,
	}
	if body != nil {
		req.Body = json.RawMessage(body)
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	var raw []byte
	if o.noLogin {
		resp, err := client.Execute(cmd.Context(), req)
		if err != nil {
			return err
		}
		raw = resp.Body
	} else {
		env, err := client.Request(cmd.Context(), req)
		if err != nil {
			return err
		}
		raw = env.Raw
	}
	return printResponse(cmd.OutOrStdout(), raw, o.field)
}

// buildBody combines --file or --data with the --set edits.
func buildBody(o *reqOptions) ([]byte, error) {
	if o.data != "" && o.file != "" {
		return nil, fmt.Errorf("--data and --file are mutually exclusive")
	}

	var body []byte
	switch {
	case o.file != "":
		b, err := LoadBodyFile(o.file)
		if err != nil {
			return nil, err
		}
		body = b
	case o.data != "":
		if !gjson.Valid(o.data) {
			return nil, fmt.Errorf("--data is not valid JSON")
		}
		body = []byte(o.data)
	}

	if len(o.set) > 0 && body == nil {
		body = []byte(`{}`)
	}
	for _, kv := range o.set {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		var err error
		if isRawJSON(value) {
			body, err = sjson.SetRawBytes(body, key, []byte(value))
		} else {
			body, err = sjson.SetBytes(body, key, value)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", kv, err)
		}
	}
	return body, nil
}

// isRawJSON reports whether v is set as a JSON value rather than as a string.
// Numbers, booleans, null, arrays, objects and quoted strings are JSON; a bare
// word such as kick-sta is not.
func isRawJSON(v string) bool {
	return gjson.Valid(v)
}

func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query parameter %q, expected key=value", kv)
		}
		m[key] = value
	}
	return m, nil
}

func printResponse(w io.Writer, raw []byte, field string) error {
	if field != "" {
		res := gjson.GetBytes(raw, field)
		if !res.Exists() {
			return fmt.Errorf("field %q not found in response", field)
		}
		raw = []byte(res.Raw)
		if res.Type == gjson.String {
			fmt.Fprintln(w, res.String())
			return nil
		}
	}

	if jsonOutput {
		var out bytes.Buffer
		if err := json.Indent(&out, raw, "", "  "); err != nil {
			return fmt.Errorf("failed to format JSON output: %w", err)
		}
		fmt.Fprintln(w, out.String())
		return nil
	}

	yamlData, err := yaml.JSONToYAML(raw)
	if err != nil {
		return fmt.Errorf("failed to convert response to YAML: %w", err)
	}
	fmt.Fprint(w, string(yamlData))
	return nil
}

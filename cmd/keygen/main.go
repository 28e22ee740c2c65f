// Command keygen mints an API key and prints the API_KEYS entry that
// authorizes it. The plaintext key is shown once and never stored.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stacklane/stacklane/internal/auth"
	"github.com/stacklane/stacklane/internal/model"
)

type output struct {
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Name      string   `json:"name"`
	Scopes    []string `json:"scopes"`
	Entry     string   `json:"api_keys_entry"`
}

func main() {
	var (
		env         = flag.String("env", auth.EnvLive, "Key environment: live or test")
		name        = flag.String("name", "bootstrap", "API key name")
		scopesInput = flag.String("scopes", "admin", "Comma-separated scopes (read,write,admin)")
		format      = flag.String("format", "plain", "Output format: plain, json or env")
	)
	flag.Parse()

	scopes, err := parseScopes(*scopesInput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	out, err := generate(*env, *name, scopes)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate api key:", err)
		os.Exit(1)
	}

	if err := write(os.Stdout, out, *format); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func generate(env, name string, scopes []string) (*output, error) {
	if strings.ContainsAny(name, ":;") {
		return nil, errors.New("name must not contain ':' or ';'")
	}

	generated, err := auth.GenerateKey(env)
	if err != nil {
		return nil, err
	}

	entry := strings.Join([]string{generated.Prefix, strings.Join(scopes, "|"), generated.Hash, name}, ":")
	return &output{
		Key:       generated.Plaintext,
		KeyPrefix: generated.Prefix,
		Name:      name,
		Scopes:    scopes,
		Entry:     entry,
	}, nil
}

func write(w io.Writer, out *output, format string) error {
	switch strings.ToLower(format) {
	case "plain":
		fmt.Fprintf(w, "key:   %s\nentry: %s\n", out.Key, out.Entry)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "env":
		// Quoted so shells leave the "$" separators of the hash alone.
		fmt.Fprintf(w, "API_KEYS='%s'\n", out.Entry)
	default:
		return errors.New("invalid format; use plain, json or env")
	}
	return nil
}

func parseScopes(input string) ([]string, error) {
	if strings.TrimSpace(input) == "" {
		return []string{model.ScopeAdmin}, nil
	}
	parts := strings.Split(input, ",")
	scopes := make([]string, 0, len(parts))
	for _, part := range parts {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !model.IsValidScope(scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		scopes = []string{model.ScopeAdmin}
	}
	return scopes, nil
}

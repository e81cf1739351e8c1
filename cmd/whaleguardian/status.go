// Copyright 2026 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/thediveo/whaleguardian/guardian"
)

// DefaultStatusTimeout bounds querying the diagnostics server.
const DefaultStatusTimeout = 5 * time.Second

type statusOptions struct {
	addr    string
	timeout time.Duration
	json    bool
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	opts := &statusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running guardian",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, raw, err := fetchStatus(cmd.Context(), opts.addr, opts.timeout)
			if err != nil {
				return err
			}
			if opts.json {
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStatus(st))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "http://localhost:8008", "diagnostics server address")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", DefaultStatusTimeout, "query timeout")
	cmd.Flags().BoolVar(&opts.json, "json", false, "output raw JSON")
	return cmd
}

// fetchStatus queries the status of a guardian from its diagnostics server,
// returning the decoded as well as the raw status.
func fetchStatus(ctx context.Context, addr string, timeout time.Duration) (guardian.Status, []byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(addr, "/")+"/status", nil)
	if err != nil {
		return guardian.Status{}, nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return guardian.Status{}, nil, errors.Wrap(err, "cannot query guardian status")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return guardian.Status{}, nil, errors.Errorf("cannot query guardian status: %s", resp.Status)
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return guardian.Status{}, nil, errors.Wrap(err, "malformed guardian status")
	}
	var st guardian.Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return guardian.Status{}, nil, errors.Wrap(err, "malformed guardian status")
	}
	return st, append(raw, '\n'), nil
}

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
	"github.com/spf13/cobra"
	"github.com/thediveo/whaleguardian/internal/logging"
	"go.uber.org/zap"
)

// rootOptions are the options common to all commands.
type rootOptions struct {
	logLevel    string
	development bool
	log         *zap.Logger
}

// newRootCmd returns the root command; a nil logger gets built from the
// logging flags.
func newRootCmd(log *zap.Logger) *cobra.Command {
	opts := &rootOptions{log: log}
	cmd := &cobra.Command{
		Use:          "whaleguardian",
		Short:        "Guards Docker containers according to declarative policies",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.log != nil {
				return nil
			}
			log, err := logging.New(logging.Options{
				Development: opts.development,
				Level:       opts.logLevel,
			})
			if err != nil {
				return err
			}
			opts.log = log
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"log level (debug, info, warn, error); overridden by "+logging.LevelEnv)
	cmd.PersistentFlags().BoolVar(&opts.development, "dev", false,
		"human-friendly console logging")
	cmd.AddCommand(
		newRunCmd(opts),
		newCheckCmd(opts),
		newStatusCmd(opts),
	)
	return cmd
}

// Copyright 2025 Stagecraft Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runProfile   string
	runPrincipal string
	runFeedback  string
	runDecidedBy string
	runTarget    string
	runReason    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Manage workflow runs",
}

var runStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a run of a delivery profile",
	Run: func(cmd *cobra.Command, args []string) {
		detail, err := call("POST", "/runs", map[string]any{
			"profileId": runProfile,
			"principal": runPrincipal,
		})
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var runAdvanceCmd = &cobra.Command{
	Use:   "advance <runId>",
	Short: "Execute the current phase of a run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		detail, err := call("POST", "/runs/"+args[0]+"/advance", nil)
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var runGetCmd = &cobra.Command{
	Use:   "get <runId>",
	Short: "Show a run and its phase history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		detail, err := call("GET", "/runs/"+args[0], nil)
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs",
	Run: func(cmd *cobra.Command, args []string) {
		path := "/runs"
		if runProfile != "" || runPrincipal != "" {
			path = fmt.Sprintf("/runs?profileId=%s&principal=%s", runProfile, runPrincipal)
		}
		detail, err := call("GET", path, nil)
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var runApproveCmd = &cobra.Command{
	Use:   "approve <runId>",
	Short: "Approve a pending consensus gate",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		detail, err := call("POST", "/runs/"+args[0]+"/approve", map[string]any{
			"decidedBy": runDecidedBy,
			"feedback":  runFeedback,
		})
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var runRejectCmd = &cobra.Command{
	Use:   "reject <runId>",
	Short: "Reject a pending consensus gate with feedback",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		detail, err := call("POST", "/runs/"+args[0]+"/reject", map[string]any{
			"decidedBy": runDecidedBy,
			"feedback":  runFeedback,
		})
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var runRollbackCmd = &cobra.Command{
	Use:   "rollback <runId>",
	Short: "Rewind a run to just after a completed phase",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		detail, err := call("POST", "/runs/"+args[0]+"/rollback", map[string]any{
			"targetPhase": runTarget,
			"reason":      runReason,
		})
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var runArtifactsCmd = &cobra.Command{
	Use:   "artifacts <runId>",
	Short: "List a run's artifacts grouped by phase",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		detail, err := call("GET", "/runs/"+args[0]+"/artifacts", nil)
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var runMetricsCmd = &cobra.Command{
	Use:   "metrics <runId>",
	Short: "Show a run's cost and quality metrics",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		detail, err := call("GET", "/runs/"+args[0]+"/metrics", nil)
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var runDeleteCmd = &cobra.Command{
	Use:   "delete <runId>",
	Short: "Delete a run and its history",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := call("DELETE", "/runs/"+args[0], nil); err != nil {
			fail(err)
		}
		fmt.Println("run deleted")
	},
}

func init() {
	runStartCmd.Flags().StringVar(&runProfile, "profile", "", "profile id")
	runStartCmd.Flags().StringVar(&runPrincipal, "principal", "", "billing principal")
	_ = runStartCmd.MarkFlagRequired("profile")
	_ = runStartCmd.MarkFlagRequired("principal")

	runListCmd.Flags().StringVar(&runProfile, "profile", "", "filter by profile id")
	runListCmd.Flags().StringVar(&runPrincipal, "principal", "", "filter by principal")

	runApproveCmd.Flags().StringVar(&runDecidedBy, "by", "", "decider identity")
	runApproveCmd.Flags().StringVar(&runFeedback, "feedback", "", "optional feedback")
	runRejectCmd.Flags().StringVar(&runDecidedBy, "by", "", "decider identity")
	runRejectCmd.Flags().StringVar(&runFeedback, "feedback", "", "feedback for the next attempt (required)")
	_ = runRejectCmd.MarkFlagRequired("feedback")

	runRollbackCmd.Flags().StringVar(&runTarget, "to", "", "completed phase to rewind to")
	runRollbackCmd.Flags().StringVar(&runReason, "reason", "", "audit reason")
	_ = runRollbackCmd.MarkFlagRequired("to")

	runCmd.AddCommand(runStartCmd, runAdvanceCmd, runGetCmd, runListCmd,
		runApproveCmd, runRejectCmd, runRollbackCmd,
		runArtifactsCmd, runMetricsCmd, runDeleteCmd)
}

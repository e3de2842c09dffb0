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
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var profileFile string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage delivery profiles",
}

var profileApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create or update a profile from a JSON file",
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(profileFile)
		if err != nil {
			fail(err)
		}
		var req map[string]any
		if err := json.Unmarshal(data, &req); err != nil {
			fail(fmt.Errorf("parse profile file: %w", err))
		}
		profileId, _ := req["profileId"].(string)
		if profileId == "" {
			fail(fmt.Errorf("profile file must carry a profileId"))
		}

		// Try update first so apply is idempotent.
		detail, err := call("PUT", "/profiles/"+profileId, req)
		if err != nil {
			detail, err = call("POST", "/profiles", req)
		}
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled profiles",
	Run: func(cmd *cobra.Command, args []string) {
		detail, err := call("GET", "/profiles", nil)
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var profileGetCmd = &cobra.Command{
	Use:   "get <profileId>",
	Short: "Show one profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		detail, err := call("GET", "/profiles/"+args[0], nil)
		if err != nil {
			fail(err)
		}
		printDetail(detail)
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <profileId>",
	Short: "Disable a profile",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := call("DELETE", "/profiles/"+args[0], nil); err != nil {
			fail(err)
		}
		fmt.Println("profile disabled")
	},
}

func init() {
	profileApplyCmd.Flags().StringVarP(&profileFile, "file", "f", "", "profile definition JSON file")
	_ = profileApplyCmd.MarkFlagRequired("file")

	profileCmd.AddCommand(profileApplyCmd, profileListCmd, profileGetCmd, profileDeleteCmd)
}

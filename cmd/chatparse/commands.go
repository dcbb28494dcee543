package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saladjay/ChatCoachService-sub002/internal/config"
)

// --- parse ---

var parseCmd = &cobra.Command{
	Use:   "parse <image-file>",
	Short: "Parse a chat screenshot through the running server",
	Long: `Parse a chat screenshot through the running server.

Examples:
  chatparse parse screenshot.png --session my-session
  chatparse parse chat.jpg --need-sender --force-two-columns`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading image: %w", err)
		}

		width, _ := cmd.Flags().GetInt("width")
		height, _ := cmd.Flags().GetInt("height")
		if width == 0 || height == 0 {
			cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("could not detect image dimensions (pass --width/--height): %w", err)
			}
			width, height = cfg.Width, cfg.Height
		}

		session, _ := cmd.Flags().GetString("session")
		scene, _ := cmd.Flags().GetString("scene")
		needNickname, _ := cmd.Flags().GetBool("need-nickname")
		needSender, _ := cmd.Flags().GetBool("need-sender")
		forceTwoColumns, _ := cmd.Flags().GetBool("force-two-columns")

		req := map[string]any{
			"image_base64": base64.StdEncoding.EncodeToString(data),
			"mime_type":    mimeTypeFor(path),
			"width":        width,
			"height":       height,
			"session_id":   session,
			"scene":        scene,
			"options": map[string]bool{
				"need_nickname":     needNickname,
				"need_sender":       needSender,
				"force_two_columns": forceTwoColumns,
			},
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/parse", req)
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

// --- recall ---

var recallCmd = &cobra.Command{
	Use:   "recall",
	Short: "Fetch the most recent cached parse result for a key",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		resource, _ := cmd.Flags().GetString("resource")
		scene, _ := cmd.Flags().GetString("scene")
		if session == "" || resource == "" {
			return fmt.Errorf("--session and --resource are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		q.Set("session_id", session)
		q.Set("resource", resource)
		if scene != "" {
			q.Set("scene", scene)
		}

		resp, err := client.get(cmd.Context(), "/v1/parse/cached?"+q.Encode())
		if err != nil {
			return err
		}

		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	parseCmd.Flags().Int("width", 0, "image width (detected from the file when omitted)")
	parseCmd.Flags().Int("height", 0, "image height (detected from the file when omitted)")
	parseCmd.Flags().String("session", "", "session identifier")
	parseCmd.Flags().String("scene", "", "scene label for the cache key")
	parseCmd.Flags().Bool("need-nickname", false, "ask the models to extract nicknames")
	parseCmd.Flags().Bool("need-sender", false, "ask the models to attribute senders explicitly")
	parseCmd.Flags().Bool("force-two-columns", false, "treat the layout as two-column")

	recallCmd.Flags().String("session", "", "session identifier")
	recallCmd.Flags().String("resource", "", "resource key: hex SHA-256 of the image bytes")
	recallCmd.Flags().String("scene", "", "scene label (default \"default\")")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

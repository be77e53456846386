package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
	userID    string
	language  string
)

func main() {
	root := &cobra.Command{
		Use:   "exec-cli",
		Short: "CLI client for code-exec-service",
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	root.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("EXEC_API_KEY"), "API key")
	root.PersistentFlags().StringVar(&userID, "user", os.Getenv("EXEC_USER_ID"), "Submitter identity (empty for anonymous)")

	// Run code
	runCmd := &cobra.Command{
		Use:   "run [code]",
		Short: "Submit code for execution",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCode,
	}
	runCmd.Flags().StringVarP(&language, "language", "l", "python", "Language (python, javascript, go, ...)")
	root.AddCommand(runCmd)

	// Run from file
	runFileCmd := &cobra.Command{
		Use:   "run-file [file]",
		Short: "Submit code from a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runFile,
	}
	runFileCmd.Flags().StringVarP(&language, "language", "l", "", "Language (auto-detected from extension)")
	root.AddCommand(runFileCmd)

	// Fetch one execution record
	root.AddCommand(&cobra.Command{
		Use:   "get [id]",
		Short: "Fetch an execution record",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	})

	// History for the configured identity
	root.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "List your executions",
		RunE:  runHistory,
	})

	// Health check
	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE:  runHealth,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCode(cmd *cobra.Command, args []string) error {
	var code string

	if len(args) > 0 {
		code = args[0]
	} else {
		// Read from stdin
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		code = string(data)
	}

	return submit(code, language)
}

func runFile(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	// Auto-detect language from extension
	if language == "" {
		switch ext := fileExtension(args[0]); ext {
		case ".py":
			language = "python"
		case ".js":
			language = "javascript"
		case ".ts":
			language = "typescript"
		case ".go":
			language = "go"
		case ".rb":
			language = "ruby"
		case ".rs":
			language = "rust"
		case ".sh":
			language = "bash"
		default:
			return fmt.Errorf("cannot detect language for extension %q, use --language flag", ext)
		}
	}

	return submit(string(data), language)
}

func submit(code, lang string) error {
	payload := map[string]any{
		"code":     code,
		"language": lang,
	}

	body, _ := json.Marshal(payload)

	req, err := http.NewRequest("POST", serverURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	setAuth(req)

	client := &http.Client{Timeout: 70 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	// Pretty print
	formatted, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(formatted))

	if status, ok := result["status"].(string); ok && status != "Succeeded" {
		os.Exit(1)
	}

	return nil
}

func runGet(_ *cobra.Command, args []string) error {
	return fetch(serverURL + "/executions/" + args[0])
}

func runHistory(_ *cobra.Command, _ []string) error {
	if userID == "" {
		return fmt.Errorf("history requires an identity, set --user or EXEC_USER_ID")
	}
	return fetch(serverURL + "/executions")
}

func runHealth(_ *cobra.Command, _ []string) error {
	resp, err := http.Get(serverURL + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]any
	json.NewDecoder(resp.Body).Decode(&result)
	formatted, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(formatted))
	return nil
}

func fetch(url string) error {
	req, _ := http.NewRequest("GET", url, nil)
	setAuth(req)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result any
	json.NewDecoder(resp.Body).Decode(&result)
	formatted, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(formatted))
	return nil
}

func setAuth(req *http.Request) {
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
}

func fileExtension(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

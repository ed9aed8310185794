package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gqlite/gqlite/pkg/coordinator"
	"github.com/gqlite/gqlite/pkg/exec"
	"github.com/gqlite/gqlite/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gqlite",
	Short: "gqlite - embedded ISO GQL property-graph database",
	Long: `gqlite is an embedded property-graph database implementing a dialect
of the ISO GQL query language: named graphs grouped under schemas, ACID
transactions with undo-log rollback, and a session-based query API — all in
a single database directory.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"gqlite version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output (debug log level)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (off, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(gqlCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(sessionCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	if verbose {
		level = "debug"
	}
	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: logJSON,
	})
}

// Install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Initialize a new database directory",
	Long: `Initialize a new gqlite database: create the directory, bootstrap the
catalogs, and create the admin user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		adminUser, _ := cmd.Flags().GetString("admin-user")
		adminPassword, _ := cmd.Flags().GetString("admin-password")
		force, _ := cmd.Flags().GetBool("force")
		yes, _ := cmd.Flags().GetBool("yes")

		if path == "" {
			return fmt.Errorf("--path is required")
		}
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("directory %s already exists; use --force to reinstall", path)
		}
		if !yes {
			fmt.Printf("Install a new database at %s? [y/N] ", path)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "y") {
				fmt.Println("Aborted.")
				return nil
			}
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}

		coord, err := coordinator.Open(path)
		if err != nil {
			return err
		}
		defer coord.Close()

		sessionID, err := coord.CreateSimpleSession("admin")
		if err != nil {
			return err
		}
		defer coord.CloseSession(sessionID)

		if adminUser != "" && adminUser != "admin" {
			stmt := fmt.Sprintf("CREATE USER %s", adminUser)
			if adminPassword != "" {
				stmt += fmt.Sprintf(" PASSWORD '%s'", strings.ReplaceAll(adminPassword, "'", "''"))
			}
			if _, err := coord.ProcessQuery(stmt, sessionID); err != nil {
				return err
			}
			if _, err := coord.ProcessQuery(
				fmt.Sprintf("GRANT ROLE admin TO %s", adminUser), sessionID); err != nil {
				return err
			}
		}

		fmt.Printf("Database installed at %s\n", path)
		return nil
	},
}

// Interactive shell
var gqlCmd = &cobra.Command{
	Use:   "gql",
	Short: "Start an interactive GQL shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		user, _ := cmd.Flags().GetString("user")
		sample, _ := cmd.Flags().GetBool("sample")
		if path == "" {
			return fmt.Errorf("--path is required")
		}

		coord, err := coordinator.Open(path)
		if err != nil {
			return err
		}
		defer coord.Close()

		sessionID, err := coord.CreateSimpleSession(user)
		if err != nil {
			return err
		}
		defer coord.CloseSession(sessionID)

		if sample {
			if err := loadSampleGraph(coord, sessionID); err != nil {
				return fmt.Errorf("failed to load sample graph: %w", err)
			}
			fmt.Println("Sample graph loaded at /sample/social (session graph set).")
		}

		fmt.Printf("gqlite %s — connected to %s as %s\n", Version, path, user)
		fmt.Println("Type a GQL statement, or \\q to quit.")

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("gql> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "\\q" || strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
				break
			}
			result, err := coord.ProcessQuery(line, sessionID)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			printTable(result)
		}
		return scanner.Err()
	},
}

// One-shot query
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Execute a single query against a database",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		queryText, _ := cmd.Flags().GetString("query")
		user, _ := cmd.Flags().GetString("user")
		format, _ := cmd.Flags().GetString("format")
		explain, _ := cmd.Flags().GetBool("explain")
		showAST, _ := cmd.Flags().GetBool("ast")

		if path == "" || queryText == "" {
			return fmt.Errorf("--path and --query are required")
		}

		coord, err := coordinator.Open(path)
		if err != nil {
			return err
		}
		defer coord.Close()

		if showAST {
			info, err := coord.AnalyzeQuery(queryText)
			if err != nil {
				return err
			}
			fmt.Printf("Statement kind: %s\nRead-only: %t\n", info.QueryType, info.IsReadOnly)
		}
		if explain {
			plan, err := coord.ExplainQuery(queryText)
			if err != nil {
				return err
			}
			fmt.Printf("Plan: %s\n", plan.Summary)
			for i, step := range plan.Tree {
				fmt.Printf("  %s%s\n", strings.Repeat("  ", i), step)
			}
			if showAST || !strings.EqualFold(format, "none") {
				fmt.Println()
			}
		}

		sessionID, err := coord.CreateSimpleSession(user)
		if err != nil {
			return err
		}
		defer coord.CloseSession(sessionID)

		result, err := coord.ProcessQuery(queryText, sessionID)
		if err != nil {
			return err
		}
		switch strings.ToLower(format) {
		case "json":
			printJSON(result)
		case "csv":
			printCSV(result)
		default:
			printTable(result)
		}
		return nil
	},
}

// Session listing
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "List active sessions of a database opened in this process",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			return fmt.Errorf("--path is required")
		}
		coord, err := coordinator.Open(path)
		if err != nil {
			return err
		}
		defer coord.Close()

		ids := coord.ListSessions()
		if len(ids) == 0 {
			fmt.Println("No active sessions.")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	installCmd.Flags().String("path", "", "Database directory")
	installCmd.Flags().String("admin-user", "admin", "Administrator username")
	installCmd.Flags().String("admin-password", "", "Administrator password")
	installCmd.Flags().Bool("force", false, "Reinstall over an existing directory")
	installCmd.Flags().Bool("yes", false, "Skip the confirmation prompt")

	gqlCmd.Flags().String("path", "", "Database directory")
	gqlCmd.Flags().StringP("user", "u", "admin", "Username")
	gqlCmd.Flags().StringP("password", "p", "", "Password")
	gqlCmd.Flags().Bool("sample", false, "Load a small sample graph")

	queryCmd.Flags().String("path", "", "Database directory")
	queryCmd.Flags().String("query", "", "GQL statement to execute")
	queryCmd.Flags().StringP("user", "u", "admin", "Username")
	queryCmd.Flags().StringP("password", "p", "", "Password")
	queryCmd.Flags().String("format", "table", "Output format (table, json, csv)")
	queryCmd.Flags().Bool("explain", false, "Show the query plan")
	queryCmd.Flags().Bool("ast", false, "Show statement classification")

	sessionCmd.Flags().String("path", "", "Database directory")
}

// loadSampleGraph creates a small social graph for experimentation.
func loadSampleGraph(coord *coordinator.Coordinator, sessionID string) error {
	statements := []string{
		"CREATE SCHEMA IF NOT EXISTS sample",
		"CREATE GRAPH IF NOT EXISTS /sample/social",
		"SESSION SET GRAPH /sample/social",
		"INSERT (:Person {name: 'Alice', age: 30, city: 'NYC'})",
		"INSERT (:Person {name: 'Bob', age: 25, city: 'SF'})",
		"INSERT (:Person {name: 'Carol', age: 35, city: 'NYC'})",
		"INSERT (a:Person {name: 'Alice', age: 30, city: 'NYC'})-[:KNOWS {since: 2019}]->(b:Person {name: 'Bob', age: 25, city: 'SF'})",
	}
	for _, stmt := range statements {
		if _, err := coord.ProcessQuery(stmt, sessionID); err != nil {
			return fmt.Errorf("%q: %w", stmt, err)
		}
	}
	return nil
}

func printTable(result *exec.QueryResult) {
	if len(result.Variables) > 0 {
		fmt.Println(strings.Join(result.Variables, " | "))
		fmt.Println(strings.Repeat("-", len(strings.Join(result.Variables, " | "))))
	}
	for _, row := range result.Rows {
		cells := make([]string, len(result.Variables))
		for i, col := range result.Variables {
			cells[i] = row.Values[col].String()
		}
		fmt.Println(strings.Join(cells, " | "))
	}
	fmt.Printf("(%d row(s), %d affected, %dms)\n",
		len(result.Rows), result.RowsAffected, result.ExecutionTimeMS)
	for _, w := range result.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
}

func printJSON(result *exec.QueryResult) {
	rows := make([]map[string]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		out := make(map[string]string, len(result.Variables))
		for _, col := range result.Variables {
			out[col] = row.Values[col].String()
		}
		rows = append(rows, out)
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printCSV(result *exec.QueryResult) {
	fmt.Println(strings.Join(result.Variables, ","))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Variables))
		for i, col := range result.Variables {
			cell := row.Values[col].String()
			if strings.ContainsAny(cell, ",\"\n") {
				cell = "\"" + strings.ReplaceAll(cell, "\"", "\"\"") + "\""
			}
			cells[i] = cell
		}
		fmt.Println(strings.Join(cells, ","))
	}
}

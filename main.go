package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"parking-terminal-cli/config"
	"parking-terminal-cli/tui"
)

const appName = "parking-terminal-cli"

var (
	version = "dev"
	commit  = "none"
)

func printUsage(out *os.File) {
	fmt.Fprintf(out, "Usage: %s [gate|checkpoint|admin] [--gate <id>] [--version]\n", appName)
}

func printVersion() {
	fmt.Printf("%s %s", appName, version)
	if commit != "none" && commit != "" {
		fmt.Printf(" (%s)", commit)
	}
	fmt.Println()
}

// handleArgs parses the command line. It returns the selected screen, the
// gate override, and whether the program should start the UI at all.
func handleArgs(args []string) (string, string, bool) {
	screen := ""
	gateID := ""

	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-h", "--help", "help":
			printUsage(os.Stdout)
			return "", "", false
		case "-v", "--version", "version":
			printVersion()
			return "", "", false
		case tui.ScreenGate, tui.ScreenCheckpoint, tui.ScreenAdmin:
			screen = arg
		case "--gate":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--gate requires a gate id")
				printUsage(os.Stderr)
				os.Exit(2)
			}
			i++
			gateID = args[i]
		default:
			fmt.Fprintf(os.Stderr, "Unknown argument: %s\n", arg)
			printUsage(os.Stderr)
			os.Exit(2)
		}
	}

	return screen, gateID, true
}

func main() {
	screen, gateID, run := handleArgs(os.Args[1:])
	if !run {
		return
	}

	cfg := config.Load()
	if gateID == "" {
		gateID = cfg.GateID
	}

	app := tui.New(tui.Options{Config: cfg, Screen: screen, GateID: gateID})
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

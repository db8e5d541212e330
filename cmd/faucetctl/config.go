// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2024 The tokenfaucet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"
	"github.com/tokenfaucet/tokenfaucet/pda"
)

const (
	defaultConfigFilename = "faucetctl.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "faucetctl.log"
	defaultDBTimeout      = 60 * time.Second
	defaultProgramID      = "23DyhF7vgaTFYoFPMXUEk1ZxWeuoV5ghEnYPdv2vmAXv"

	ledgerDbName = "ledger.db"
)

var (
	faucetHomeDir     = btcutil.AppDataDir("faucetctl", false)
	defaultConfigFile = filepath.Join(faucetHomeDir, defaultConfigFilename)
	defaultDataDir    = faucetHomeDir
	defaultLogDir     = filepath.Join(faucetHomeDir, defaultLogDirname)
)

type config struct {
	ConfigFile string        `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string        `short:"b" long:"datadir" description:"Directory to store the ledger database"`
	LogDir     string        `long:"logdir" description:"Directory to log output"`
	DebugLevel string        `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	ProgramID  string        `long:"programid" description:"Base58 identity of the faucet program"`
	DBTimeout  time.Duration `long:"dbtimeout" description:"How long to wait for the ledger database lock"`

	SyncFreelist bool `long:"syncfreelist" description:"Whether the ledger database should sync its freelist to disk, resulting in improved recovery time after a crash at the cost of write performance"`

	programID common.PublicKey
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(faucetHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace":
		fallthrough
	case "debug":
		fallthrough
	case "info":
		fallthrough
	case "warn":
		fallthrough
	case "error":
		fallthrough
	case "critical":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	// Convert the subsystemLoggers map keys to a slice.
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsytems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "The specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "The specified subsystem [%v] is invalid -- " +
				"supported subsytems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			str := "The specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// newParser returns a parser for cfg with every faucetctl command attached.
func newParser(cfg *config, options flags.Options) (*flags.Parser, error) {
	parser := flags.NewParser(cfg, options)
	for _, c := range commands {
		_, err := parser.AddCommand(c.name, c.short, c.long, c.cmd)
		if err != nil {
			return nil, err
		}
	}
	return parser, nil
}

// loadConfig initializes and parses the config using a config file and command
// line options, and returns the selected command along with its remaining
// arguments.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func loadConfig() (*config, command, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile: defaultConfigFile,
		DataDir:    defaultDataDir,
		LogDir:     defaultLogDir,
		DebugLevel: defaultLogLevel,
		ProgramID:  defaultProgramID,
		DBTimeout:  defaultDBTimeout,
	}

	// A config file in the current directory takes precedence.
	if fileExists(defaultConfigFilename) {
		cfg.ConfigFile = defaultConfigFilename
	}

	// Pre-parse the command line options to see if an alternative config
	// file was specified.  Commands and their options are resolved by the
	// full parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.IgnoreUnknown)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			parser, perr := newParser(&cfg, flags.Default)
			if perr == nil {
				parser.WriteHelp(os.Stdout)
			}
		}
		return nil, nil, nil, err
	}

	// Load additional config from file.
	var configFileError error
	parser, err := newParser(&cfg, flags.Default)
	if err != nil {
		return nil, nil, nil, err
	}
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, nil, err
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		return nil, nil, nil, err
	}

	// Warn about missing config file after the final command line parse
	// succeeds.  This prevents the warning on help messages and invalid
	// options.
	if configFileError != nil && preCfg.ConfigFile != defaultConfigFile {
		log.Warnf("%v", configFileError)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)

	// Initialize the log rotator before any subsystem logs to the file.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		err := fmt.Errorf("loadConfig: %v", err)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, nil, err
	}

	cfg.programID, err = pda.ParseAddress(cfg.ProgramID)
	if err != nil {
		err := fmt.Errorf("loadConfig: --programid: %v", err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, nil, err
	}

	if parser.Active == nil {
		err := fmt.Errorf("loadConfig: no command specified")
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, nil, err
	}
	cmd, ok := commandByName(parser.Active.Name)
	if !ok {
		err := fmt.Errorf("loadConfig: unknown command %q",
			parser.Active.Name)
		return nil, nil, nil, err
	}

	return &cfg, cmd, remainingArgs, nil
}

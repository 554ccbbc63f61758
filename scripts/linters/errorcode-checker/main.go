// Command errorcode-checker verifies that every error code declared with
// errors.MustNewCode is unique and referenced, and flags raw fmt.Errorf use
// outside of tests.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
)

func main() {
	var (
		dir        = flag.String("dir", ".", "Directory to check")
		configPath = flag.String("config", "", "Path to configuration file")
	)
	flag.Parse()

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("Warning: Using default configuration: %v", err)
		config, _ = loadConfig("")
	}

	checker := NewErrorCodeChecker(config.Verbose)
	if err := checker.CheckDirectory(*dir, config.ExcludePaths); err != nil {
		log.Fatalf("Error checking directory: %v", err)
	}

	failed := false

	unused := checker.Unused()
	for _, info := range unused {
		fmt.Printf("UNUSED: %s (%s) declared in %s:%d\n", info.Name, info.Code, info.File, info.Line)
	}
	if len(unused) > 0 && config.ExitOnUnused {
		failed = true
	}

	dups := checker.Duplicates()
	codes := make([]string, 0, len(dups))
	for code := range dups {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		for _, info := range dups[code] {
			fmt.Printf("DUPLICATE: %q declared as %s in %s:%d\n", code, info.Name, info.File, info.Line)
		}
	}
	if len(dups) > 0 && config.ExitOnDuplicate {
		failed = true
	}

	if config.CheckForbidden {
		violations, err := checker.CheckForbiddenPatterns(config.ForbiddenPatterns)
		if err != nil {
			log.Fatalf("Error checking patterns: %v", err)
		}
		for _, v := range violations {
			fmt.Printf("FORBIDDEN: %s at %s:%d: %s\n", v.Pattern, v.File, v.Line, v.Text)
		}
		if len(violations) > 0 && config.ExitOnForbidden {
			failed = true
		}
	}

	fmt.Printf("Checked %d error codes\n", len(checker.errorCodes))
	if failed {
		os.Exit(1)
	}
}

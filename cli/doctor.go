package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/bisyncd/bisyncd/internal/config"
	"github.com/bisyncd/bisyncd/internal/corelog"
)

// Status constants for a single doctor check, matching the teacher's
// doctor.go vocabulary.
const (
	checkPass = "pass"
	checkFail = "fail"
	checkSkip = "skip"
)

// CheckResult is one diagnostic outcome.
type CheckResult struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

// DoctorCommand runs preflight checks against the configured environment:
// rclone (and optionally cpulimit) on PATH, the config file parsing
// cleanly, and local_base_path existing, per SPEC_FULL.md §11.
type DoctorCommand struct {
	ConfigFile string `long:"config" env:"BISYNCD_CONFIG" description:"Path to the YAML config file"`

	Logger corelog.Logger
}

func (c *DoctorCommand) Execute(_ []string) error {
	cfgPath := resolveConfigPath(c.ConfigFile)
	var checks []CheckResult
	healthy := true

	rcloneCheck := checkTool("rclone", true)
	checks = append(checks, rcloneCheck)
	if rcloneCheck.Status == checkFail {
		healthy = false
	}
	checks = append(checks, checkTool("cpulimit", false))

	cfg, cfgCheck := checkConfig(cfgPath)
	checks = append(checks, cfgCheck)
	if cfgCheck.Status == checkFail {
		healthy = false
	}

	if cfg != nil {
		pathCheck := checkLocalBasePath(cfg.LocalBasePath)
		checks = append(checks, pathCheck)
		if pathCheck.Status == checkFail {
			healthy = false
		}
	}

	for _, check := range checks {
		icon := "?"
		switch check.Status {
		case checkPass:
			icon = "OK"
		case checkFail:
			icon = "FAIL"
		case checkSkip:
			icon = "SKIP"
		}
		if check.Message != "" {
			fmt.Printf("[%s] %s: %s\n", icon, check.Name, check.Message)
		} else {
			fmt.Printf("[%s] %s\n", icon, check.Name)
		}
	}

	if !healthy {
		return fmt.Errorf("doctor found issue(s), see above")
	}
	fmt.Println("All checks passed.")
	return nil
}

func checkTool(name string, required bool) CheckResult {
	if _, err := exec.LookPath(name); err != nil {
		status := checkFail
		if !required {
			status = checkSkip
		}
		return CheckResult{Category: "Tools", Name: name, Status: status, Message: name + " not found on PATH"}
	}
	return CheckResult{Category: "Tools", Name: name, Status: checkPass}
}

func checkConfig(path string) (*config.Config, CheckResult) {
	if _, err := os.Stat(path); err != nil {
		return nil, CheckResult{Category: "Configuration", Name: "file exists", Status: checkFail, Message: path + " not found"}
	}
	cfg, err := config.NewLoader(path).Load(config.CLIOverrides{})
	if err != nil {
		return nil, CheckResult{Category: "Configuration", Name: "valid", Status: checkFail, Message: err.Error()}
	}
	return cfg, CheckResult{Category: "Configuration", Name: "valid", Status: checkPass, Message: fmt.Sprintf("%d sync job(s) configured", len(cfg.SyncJobs))}
}

func checkLocalBasePath(path string) CheckResult {
	if _, err := os.Stat(path); err != nil {
		return CheckResult{Category: "Configuration", Name: "local_base_path exists", Status: checkFail, Message: path + " does not exist"}
	}
	return CheckResult{Category: "Configuration", Name: "local_base_path exists", Status: checkPass, Message: path}
}

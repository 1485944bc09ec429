package cli

import (
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/mcp"
)

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		info := buildInfo()
		if versionJSON {
			return printJSON(cmd, info)
		}
		cmd.Printf("sercha-rag version %s\n", info.Version)
		if info.Commit != "" {
			cmd.Printf("commit:      %s\n", info.Commit)
		}
		cmd.Printf("go:          %s %s\n", info.GoVersion, info.Platform)
		cmd.Printf("mcp server:  %s\n", info.MCPVersion)
		return nil
	},
}

type versionInfo struct {
	Version    string `json:"version"`
	Commit     string `json:"commit,omitempty"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
	MCPVersion string `json:"mcp_version"`
}

func buildInfo() versionInfo {
	info := versionInfo{
		Version:    version,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
		MCPVersion: mcp.Version,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Commit = s.Value
			}
		}
	}
	return info
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "print build information as JSON")
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration to the configuration file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := getConfigPath(global.configFile)
	if _, err := os.Stat(path); err == nil && !initForce {
		pterm.Info.Printfln("configuration file already exists: %s", path)
		return nil
	}
	if err := manager.SaveToFile(path); err != nil {
		return err
	}
	pterm.Success.Printfln("created configuration file: %s", path)
	cred, token := credentialPaths()
	pterm.Info.Printfln("gmail credentials: %s", cred)
	pterm.Info.Printfln("gmail token: %s", token)
	return nil
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configDefault 内置默认配置，找不到配置文件时使用
var configDefault string

var rootCmd = &cobra.Command{
	Use:   "simvex-api",
	Short: "Simvex API repository tooling",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
}

// Execute 执行根命令, c 为内置默认配置
func Execute(c string) {
	configDefault = c
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

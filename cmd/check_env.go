package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	internalApp "github.com/dosacha/simvex-api/internal/app"
	"github.com/dosacha/simvex-api/internal/repository"
	"github.com/dosacha/simvex-api/pkg/util"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// requiredEnvKeys 预发布环境必须设置的变量
var requiredEnvKeys = []string{
	internalApp.EnvRepositoryDriver,
	internalApp.EnvDatabaseURL,
}

var checkEnvCmd = &cobra.Command{
	Use:   "check-env",
	Short: "Check the environment of a staging rehearsal (postgres driver and DATABASE_URL)",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCheckEnv(os.Getenv, cmd.OutOrStdout()); err != nil {
			fmt.Printf("Environment check failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkEnvCmd)
}

func runCheckEnv(getenv func(string) string, out io.Writer) error {
	var missing []string
	for _, key := range requiredEnvKeys {
		if strings.TrimSpace(getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("missing: %s", strings.Join(missing, ", "))
	}

	driver := strings.ToLower(strings.TrimSpace(getenv(internalApp.EnvRepositoryDriver)))
	if driver != repository.DriverPostgres {
		return errors.Errorf("%s must be postgres, current: %s", internalApp.EnvRepositoryDriver, getenv(internalApp.EnvRepositoryDriver))
	}

	fmt.Fprintln(out, "Staging environment check passed.")
	fmt.Fprintf(out, "- %s: %s\n", internalApp.EnvRepositoryDriver, driver)
	fmt.Fprintf(out, "- %s: %s\n", internalApp.EnvDatabaseURL, util.MaskURLPassword(getenv(internalApp.EnvDatabaseURL)))
	return nil
}

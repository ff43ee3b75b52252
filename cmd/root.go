package cmd

import (
	"errors"
	"flag"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/testifysec/gatekeeper-authoring/pkg/kubectl"
)

// ErrProblemsFound is returned when linting reported diagnostics. It is not
// printed, only turned into a non-zero exit status.
var ErrProblemsFound = errors.New("problems found")

var (
	rootCmd = &cobra.Command{
		Use:           "gatekeeper-authoring",
		Short:         "Author, lint and deploy Gatekeeper policies",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	kubectlPath string
	kubeconfig  string
	kubeContext string
	noColor     bool
)

func init() {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)

	rootCmd.PersistentFlags().StringVar(&kubectlPath, "kubectl", "kubectl", "path to the kubectl binary")
	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "kubeconfig passed to kubectl")
	rootCmd.PersistentFlags().StringVar(&kubeContext, "context", "", "kubeconfig context passed to kubectl")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func Execute() error {
	return rootCmd.Execute()
}

// newRunner builds the kubectl runner from the global flags.
var newRunner = func() kubectl.Runner {
	runner := kubectl.NewExecRunner(kubectlPath)
	runner.Kubeconfig = kubeconfig
	runner.Context = kubeContext
	if klog.V(4).Enabled() {
		logger := logrus.New()
		logger.SetLevel(logrus.DebugLevel)
		runner.Log = logger
	}
	return runner
}

func kubectlClient() *kubectl.Client {
	return kubectl.New(newRunner())
}

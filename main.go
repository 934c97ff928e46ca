package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohitkumar/forge/approval"
	"github.com/mohitkumar/forge/config"
	"github.com/mohitkumar/forge/llm"
	"github.com/mohitkumar/forge/logger"
	"github.com/mohitkumar/forge/memory"
	"github.com/mohitkumar/forge/metadata"
	"github.com/mohitkumar/forge/rest"
	"github.com/mohitkumar/forge/service"
	"github.com/mohitkumar/forge/tool"
	"github.com/mohitkumar/forge/trace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cli struct {
	cfg config.Config
}

func setupFlags(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("config-file", "", "Path to config file.")
	cmd.PersistentFlags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.PersistentFlags().String("namespace", "forge", "namespace used in storage keys")
	cmd.PersistentFlags().Int("http-port", 8420, "http port for rest endpoints")
	cmd.PersistentFlags().String("memory-impl", "short_term", "agent memory implementation, short_term or redis")
	cmd.PersistentFlags().String("storage-impl", "memory", "team definition storage, memory or redis")
	cmd.PersistentFlags().Int("recorder-capacity", 1024, "trace recorder queue capacity")
	cmd.PersistentFlags().Int("max-steps", 100, "default bound on total step executions per run")
	cmd.PersistentFlags().String("trace-export", "", "append every run's event trace to this file as json lines")
	cmd.PersistentFlags().Bool("debug", false, "debug logging")
	return viper.BindPFlags(cmd.PersistentFlags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}

	c.cfg = config.Default()
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.MemoryType = config.MemoryType(viper.GetString("memory-impl"))
	c.cfg.RecorderCapacity = viper.GetInt("recorder-capacity")
	c.cfg.Engine.MaxSteps = viper.GetInt("max-steps")
	c.cfg.TraceExportFile = viper.GetString("trace-export")
	return logger.InitLogger(viper.GetBool("debug"))
}

func (c *cli) memoryStore() memory.Store {
	if c.cfg.MemoryType == config.MEMORY_TYPE_REDIS {
		return memory.NewRedisStore(c.cfg.RedisConfig)
	}
	return memory.NewShortTermStore()
}

func (c *cli) newRunService(metadataService metadata.MetadataService) *service.RunService {
	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}
	return service.NewRunService(
		metadataService,
		llm.Unconfigured(),
		c.memoryStore(),
		tool.NewDefaultRegistry(workDir),
		approval.NewManager(),
		c.cfg,
	)
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	def, err := metadata.ParseTeamFile(args[0])
	if err != nil {
		return err
	}
	task, _ := cmd.Flags().GetString("task")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	traceOut, _ := cmd.Flags().GetString("trace-out")
	if dryRun {
		def.Control.DryRun = true
	}

	// the run's recorder takes ownership of the collector and closes it
	var collector trace.Collector
	if traceOut != "" {
		collector, err = trace.NewLogFileCollector(traceOut)
		if err != nil {
			return err
		}
	}

	svc := c.newRunService(metadata.NewMetadataService(metadata.NewInMemoryStorage()))
	defer svc.Stop()
	input := map[string]any{}
	if task != "" {
		input["input"] = task
	}
	result, _, err := svc.Execute(context.Background(), def, input, collector)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if !result.Success {
		return fmt.Errorf("run failed at step '%s': %s", result.FailedStepId, result.Error)
	}
	return nil
}

func (c *cli) validate(cmd *cobra.Command, args []string) error {
	def, err := metadata.ParseTeamFile(args[0])
	if err != nil {
		return err
	}
	if _, _, err := metadata.Build(def); err != nil {
		return err
	}
	fmt.Printf("team '%s' is valid: %d agents, %d steps\n", def.Name, len(def.Agents), len(def.Steps))
	return nil
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	if err := trace.RegisterViews(); err != nil {
		return err
	}
	var storage metadata.Storage
	if viper.GetString("storage-impl") == "redis" {
		storage = metadata.NewRedisStorage(c.cfg.RedisConfig)
	} else {
		storage = metadata.NewInMemoryStorage()
	}
	metadataService := metadata.NewMetadataService(storage)
	runService := c.newRunService(metadataService)

	server, err := rest.NewServer(c.cfg.HttpPort, metadataService, runService)
	if err != nil {
		return err
	}
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("http server stopped")
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	runService.Stop()
	return server.Stop()
}

func main() {
	cli := &cli{}

	rootCmd := &cobra.Command{
		Use:               "forge",
		Short:             "run llm agent teams through declarative workflows",
		PersistentPreRunE: cli.setupConfig,
	}
	if err := setupFlags(rootCmd); err != nil {
		log.Fatal(err)
	}

	runCmd := &cobra.Command{
		Use:   "run <team-file>",
		Short: "execute a team definition",
		Args:  cobra.ExactArgs(1),
		RunE:  cli.run,
	}
	runCmd.Flags().String("task", "", "task text exposed to templates as {{input}}")
	runCmd.Flags().Bool("dry-run", false, "plan the run without calling any model")
	runCmd.Flags().String("trace-out", "", "append the event trace to this file as json lines")

	validateCmd := &cobra.Command{
		Use:   "validate <team-file>",
		Short: "validate a team definition without running it",
		Args:  cobra.ExactArgs(1),
		RunE:  cli.validate,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "start the rest server",
		RunE:  cli.serve,
	}

	rootCmd.AddCommand(runCmd, validateCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

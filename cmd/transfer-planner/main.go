/*
Copyright 2024 Telespazio UK.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/EO-DataHub/eodhp-transfer-planner/internal/config"
	"github.com/EO-DataHub/eodhp-transfer-planner/internal/notify"
	"github.com/EO-DataHub/eodhp-transfer-planner/internal/plan"
)

// CLI defines the command structure parsed by Kong.
type CLI struct {
	Config string `short:"c" default:"planner.yaml" help:"Path to the planner configuration"`

	Validate ValidateCmd `cmd:"" help:"Validate a transfer spec document"`
	Plan     PlanCmd     `cmd:"" help:"Generate a provisioning plan from a transfer spec"`
	Outputs  OutputsCmd  `cmd:"" help:"Project the derived outputs of a transfer spec"`
}

// Context carries the shared dependencies into command Run methods.
type Context struct {
	Log    logr.Logger
	Config config.Config
}

type ValidateCmd struct {
	SpecFile string `arg:"" help:"Transfer spec document (YAML or JSON)"`
}

func (c *ValidateCmd) Run(ctx *Context) error {
	spec, err := config.LoadTransferSpec(c.SpecFile)
	if err != nil {
		return err
	}
	if err := plan.Validate(spec); err != nil {
		return err
	}
	ctx.Log.Info("Transfer spec is valid", "spec", spec.Name,
		"users", len(spec.Users))
	return nil
}

type PlanCmd struct {
	SpecFile string `arg:"" help:"Transfer spec document (YAML or JSON)"`
	Publish  bool   `help:"Publish the plan to the configured Pulsar topic"`
}

func (c *PlanCmd) Run(ctx *Context) error {
	spec, err := config.LoadTransferSpec(c.SpecFile)
	if err != nil {
		return err
	}

	builder := plan.Builder{
		Spec:         spec,
		AccountID:    ctx.Config.AWS.AccountID,
		Region:       ctx.Config.AWS.Region,
		UniqueString: ctx.Config.UniqueString,
	}
	graph, err := builder.Build()
	if err != nil {
		return err
	}

	data, err := plan.Marshal(graph)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	ctx.Log.Info("Plan generated", "spec", spec.Name,
		"intents", len(graph.Intents()))

	if !c.Publish {
		return nil
	}
	if ctx.Config.Pulsar.URL == "" {
		return fmt.Errorf("cannot publish: no pulsar URL configured")
	}
	events, err := notify.NewEventsClient(ctx.Config.Pulsar.URL,
		ctx.Config.Pulsar.Topic)
	if err != nil {
		return err
	}
	defer events.Close()
	if err := events.Publish(context.Background(),
		notify.NewPlanEvent(spec.Name, data)); err != nil {
		return err
	}
	ctx.Log.Info("Plan published", "spec", spec.Name,
		"topic", ctx.Config.Pulsar.Topic)
	return nil
}

type OutputsCmd struct {
	SpecFile string `arg:"" help:"Transfer spec document (YAML or JSON)"`
	ServerID string `help:"Realized server ID, used to derive the endpoint address"`
}

func (c *OutputsCmd) Run(ctx *Context) error {
	spec, err := config.LoadTransferSpec(c.SpecFile)
	if err != nil {
		return err
	}

	builder := plan.Builder{
		Spec:         spec,
		AccountID:    ctx.Config.AWS.AccountID,
		Region:       ctx.Config.AWS.Region,
		UniqueString: ctx.Config.UniqueString,
	}
	graph, err := builder.Build()
	if err != nil {
		return err
	}

	outputs := builder.Project(graph, c.ServerID)
	data, err := json.MarshalIndent(outputs, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	zapLog, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Problem initialising logger:", err)
		os.Exit(1)
	}
	defer zapLog.Sync() //nolint:errcheck
	log := zapr.NewLogger(zapLog)

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("transfer-planner"),
		kong.Description("Generates provisioning plans for managed SFTP transfer endpoints."),
		kong.UsageOnError(),
	)

	cfg := config.Config{}
	if err := cfg.Load(cli.Config); err != nil {
		log.Error(err, "Problem loading planner config", "path", cli.Config)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error(err, "Invalid planner config", "path", cli.Config)
		os.Exit(1)
	}

	kctx.FatalIfErrorf(kctx.Run(&Context{Log: log, Config: cfg}))
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/engineclient"
	"github.com/thediveo/whaleguardian/engineclient/moby"
	"github.com/thediveo/whaleguardian/rules"
	"github.com/thediveo/whaleguardian/source"
)

func main() {
	// connect to the Docker engine, bounding each individual call.
	engine, err := moby.New("unix:///var/run/docker.sock")
	if err != nil {
		panic(err)
	}
	src := source.New(engineclient.WithTimeout(engine, 10*time.Second))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	fmt.Printf("guarding engine ID: %s\n", src.Engine().ID(ctx))

	// a single cycle without acting on anything: collect, build, evaluate.
	batch, err := src.Collect(ctx)
	if err != nil {
		panic(err)
	}
	snap := whaleguardian.Build(nil, time.Now(), batch.Complete, batch.Observations)

	// get list of projects; we add the unnamed "" project which automatically
	// contains all non-project (standalone) containers.
	pf := snap.Portfolio()
	for _, projectname := range append([]string{""}, pf.Names()...) {
		fmt.Printf("project %q:\n", projectname)
		for _, container := range pf.Project(projectname).Containers() {
			fmt.Printf("  container %q is %s (health %s)\n",
				container.Name, container.Status, container.Health)
		}
		fmt.Println()
	}

	policies, err := rules.NewRegistry().Compile([]whaleguardian.Policy{{
		ID: "restarted",
		Condition: whaleguardian.ConditionSpec{
			Kind:   rules.KindThreshold,
			Metric: rules.MetricRestartCount,
			Above:  0,
		},
		Action: whaleguardian.ActionAlert,
	}})
	if err != nil {
		panic(err)
	}
	for _, v := range policies.Evaluate(snap, nil, rules.NewHistory(1)) {
		fmt.Println(v)
	}
}

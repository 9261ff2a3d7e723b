package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aceframe/acebus/ace"
	"github.com/aceframe/acebus/api"
	"github.com/aceframe/acebus/bus"
	"github.com/aceframe/acebus/envelope"
	"github.com/aceframe/acebus/resource"
)

// strategyLayer is a middle layer that consumes every queue on its boundary.
type strategyLayer struct {
	r *resource.Resource
}

func (s *strategyLayer) Settings() resource.Settings {
	return resource.SettingsFromConfig()
}

func (s *strategyLayer) Status() map[string]any {
	return envelope.BuildStatus(true, nil)
}

func (s *strategyLayer) OnPostConnect(rail ace.Rail, loop bus.Loop) error {
	for _, q := range s.r.AllQueueNames() {
		if err := s.r.SubscribeQueueOnLoop(rail, loop, q); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	ace.SetProp(resource.PropResourceName, "layer_2")
	ace.SetProp(resource.PropResourceLabel, "Global Strategy")
	ace.SetProp(resource.PropResourceLayers, []string{"layer_1", "layer_2", "layer_3"})
}

func main() {
	rail := ace.EmptyRail()
	ace.ConfigureLogging(rail)

	svc := &strategyLayer{}
	r := resource.New(svc, resource.WithEndpoint(api.New()))
	svc.r = r

	if err := r.Start(rail); err != nil {
		rail.Errorf("Failed to start resource: %v", err)
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := r.Stop(rail); err != nil {
		rail.Errorf("Failed to stop resource: %v", err)
	}
}

package component_test

import (
	"context"
	"fmt"

	"infoton/pkg/component"
)

type exampleComponent struct {
	name string
}

func (e *exampleComponent) Name() string { return e.name }

func (e *exampleComponent) Start(ctx context.Context) error {
	fmt.Printf("starting component: %s\n", e.name)
	return nil
}

func (e *exampleComponent) Stop(ctx context.Context) error {
	fmt.Printf("stopping component: %s\n", e.name)
	return nil
}

func ExampleManager() {
	manager := component.New()

	manager.Register(&exampleComponent{name: "positioner"})
	manager.Register(&exampleComponent{name: "transport"})

	ctx := context.Background()
	if err := manager.Start(ctx); err != nil {
		fmt.Printf("failed to start: %v\n", err)
		return
	}
	if err := manager.Stop(ctx); err != nil {
		fmt.Printf("failed to stop: %v\n", err)
	}

	// Output:
	// starting component: positioner
	// starting component: transport
	// stopping component: transport
	// stopping component: positioner
}

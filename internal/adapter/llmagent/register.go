package llmagent

import (
	"errors"

	"github.com/skywise-ai/irops/internal/adapter/litellm"
	"github.com/skywise-ai/irops/internal/port/agentbackend"
	"github.com/skywise-ai/irops/internal/port/opsdata"
)

// RegisterProvider registers the "litellm" backend factory over a shared
// proxy client and ops-data source. Chains built afterwards select the model
// per entry via the "model" config key.
func RegisterProvider(client *litellm.Client, ops opsdata.Source) {
	agentbackend.Register("litellm", func(config map[string]string) (agentbackend.Backend, error) {
		model := config["model"]
		if model == "" {
			return nil, errors.New("llmagent: config key \"model\" is required")
		}
		return New(model, client, ops), nil
	})
}

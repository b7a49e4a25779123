package main

import (
	"fmt"

	"clipdub/internal/config"
	"clipdub/internal/queue"
)

// commandContext lazily loads configuration and the queue store so
// commands that do not need them (config init) stay independent.
type commandContext struct {
	configFlag *string

	cfg        *config.Config
	configPath string
	store      *queue.Store
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, resolvedPath, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.configPath = resolvedPath
	return cfg, nil
}

func (c *commandContext) ensureStore() (*queue.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	c.store = store
	return store, nil
}

func (c *commandContext) close() {
	if c.store != nil {
		_ = c.store.Close()
		c.store = nil
	}
}

// defaultChatID picks the submission chat for CLI-created tasks.
func (c *commandContext) defaultChatID() int64 {
	if c.cfg != nil && len(c.cfg.Telegram.AdminChatIDs) > 0 {
		return c.cfg.Telegram.AdminChatIDs[0]
	}
	return 0
}

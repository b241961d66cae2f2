// Package app assembles planner options shared by the command-line binaries.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/autohtn/internal/config"
	"github.com/cory-johannsen/autohtn/internal/crafting"
	"github.com/cory-johannsen/autohtn/internal/scripting"
)

// PlannerOptions maps cfg onto crafting.Options and, when cfg.SuppressScript is set,
// loads it into a sandboxed Lua manager used as the Suppressor. isTool backs the
// script's autohtn.is_tool and may be nil when several rulebooks share the options.
//
// Precondition: logger must be non-nil.
// Postcondition: the returned close func is never nil and releases the Lua VM.
func PlannerOptions(cfg config.PlannerConfig, isTool func(string) bool, logger *zap.Logger) (crafting.Options, func(), error) {
	opts := crafting.OptionsFromConfig(cfg)
	opts.Logger = logger
	if cfg.SuppressScript == "" {
		return opts, func() {}, nil
	}

	mgr := scripting.NewManager(cfg.ScriptInstructionLimit, logger)
	mgr.IsTool = isTool
	if err := mgr.LoadFile(cfg.SuppressScript); err != nil {
		return crafting.Options{}, func() {}, fmt.Errorf("loading suppress script: %w", err)
	}
	if !mgr.HasHook(scripting.SuppressHook) {
		mgr.Close()
		return crafting.Options{}, func() {}, fmt.Errorf("suppress script %s defines no %s function", cfg.SuppressScript, scripting.SuppressHook)
	}
	logger.Info("suppress script loaded", zap.String("path", cfg.SuppressScript))
	opts.Suppressor = mgr
	return opts, mgr.Close, nil
}

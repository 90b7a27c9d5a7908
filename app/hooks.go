package app

import (
	"context"
	"fmt"
)

// Hook 生命周期钩子函数.
type Hook func(ctx context.Context) error

// Hooks 生命周期钩子集合.
type Hooks struct {
	BeforeStart []Hook
	AfterStart  []Hook
	BeforeStop  []Hook
	AfterStop   []Hook
}

// run 依次执行钩子，遇到第一个错误即返回.
func (h *Hooks) run(ctx context.Context, stage string, pick func(*Hooks) []Hook) error {
	if h == nil {
		return nil
	}
	for _, hook := range pick(h) {
		if err := hook(ctx); err != nil {
			return fmt.Errorf("app: %s hook: %w", stage, err)
		}
	}
	return nil
}

func (h *Hooks) runBeforeStart(ctx context.Context) error {
	return h.run(ctx, "before start", func(h *Hooks) []Hook { return h.BeforeStart })
}

func (h *Hooks) runAfterStart(ctx context.Context) error {
	return h.run(ctx, "after start", func(h *Hooks) []Hook { return h.AfterStart })
}

func (h *Hooks) runBeforeStop(ctx context.Context) error {
	return h.run(ctx, "before stop", func(h *Hooks) []Hook { return h.BeforeStop })
}

func (h *Hooks) runAfterStop(ctx context.Context) error {
	return h.run(ctx, "after stop", func(h *Hooks) []Hook { return h.AfterStop })
}

// HooksBuilder 钩子构建器.
type HooksBuilder struct {
	hooks *Hooks
}

// NewHooks 创建钩子构建器.
func NewHooks() *HooksBuilder {
	return &HooksBuilder{hooks: &Hooks{}}
}

// BeforeStart 添加启动前钩子，返回错误时应用不会启动.
func (b *HooksBuilder) BeforeStart(hook Hook) *HooksBuilder {
	b.hooks.BeforeStart = append(b.hooks.BeforeStart, hook)
	return b
}

// AfterStart 添加启动后钩子.
func (b *HooksBuilder) AfterStart(hook Hook) *HooksBuilder {
	b.hooks.AfterStart = append(b.hooks.AfterStart, hook)
	return b
}

// BeforeStop 添加停止前钩子.
func (b *HooksBuilder) BeforeStop(hook Hook) *HooksBuilder {
	b.hooks.BeforeStop = append(b.hooks.BeforeStop, hook)
	return b
}

// AfterStop 添加停止后钩子.
func (b *HooksBuilder) AfterStop(hook Hook) *HooksBuilder {
	b.hooks.AfterStop = append(b.hooks.AfterStop, hook)
	return b
}

// Build 构建钩子.
func (b *HooksBuilder) Build() *Hooks {
	return b.hooks
}

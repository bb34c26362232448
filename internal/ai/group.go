package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type ChatEntry struct {
	Name  string
	Model IChatModel
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

type groupChatModel struct {
	items []ChatEntry
}

// NewGroupChatModel tries backends in order until one answers.
func NewGroupChatModel(items []ChatEntry) IChatModel {
	if len(items) == 0 {
		return nil
	}
	return &groupChatModel{items: items}
}

func (g *groupChatModel) Chat(ctx context.Context, prompt Prompt) (string, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Model == nil {
			continue
		}
		res, err := item.Model.Chat(ctx, prompt)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("chat backend failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return "", fmt.Errorf("chat backend not configured")
	}
	return "", lastErr
}

func (g *groupChatModel) ChatStream(ctx context.Context, prompt Prompt, emit func(string) error) error {
	var lastErr error
	for i, item := range g.items {
		if item.Model == nil {
			continue
		}
		emitted := false
		err := item.Model.ChatStream(ctx, prompt, func(fragment string) error {
			emitted = true
			return emit(fragment)
		})
		if err == nil {
			return nil
		}
		if emitted {
			// fragments already went downstream, failing over would replay the answer
			return err
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("chat stream backend failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return fmt.Errorf("chat backend not configured")
	}
	return lastErr
}

type groupEmbedder struct {
	items []EmbedderEntry
}

func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	if len(items) == 0 {
		return nil
	}
	return &groupEmbedder{items: items}
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var lastErr error
	for i, item := range g.items {
		if item.Embedder == nil {
			continue
		}
		res, err := item.Embedder.Embed(ctx, text, taskType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logutil.GetLogger(ctx).Warn("embedder failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return nil, lastErr
}

func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.items))
	for _, item := range g.items {
		if item.Name == "" {
			continue
		}
		names = append(names, item.Name)
	}
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, "|")
}

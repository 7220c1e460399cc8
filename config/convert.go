package config

import (
	"github.com/softreason/softreason/pkg/reasoning"
)

// ToRecallConfig converts the recall section into the engine's settings.
func (r RecallConfig) ToRecallConfig() reasoning.RecallConfig {
	return reasoning.RecallConfig{
		FastTopK:           r.FastTopK,
		FinalTopK:          r.FinalTopK,
		RecencyAlpha:       r.RecencyAlpha,
		MinScore:           r.MinScore,
		UseDualEmbedding:   r.UseDualEmbedding,
		RecencyHorizonSec:  r.RecencyHorizonSec,
		EnableHybridRerank: r.EnableHybridRerank,
	}
}

// ToWritebackConfig converts the writeback section into the engine's settings.
func (w WritebackConfig) ToWritebackConfig() reasoning.WritebackConfig {
	return reasoning.WritebackConfig{
		NoveltyGate:       w.NoveltyGate,
		DefaultTTLSeconds: w.DefaultTTLSeconds,
		LongTTLSeconds:    w.LongTTLSeconds,
		MaxLenChars:       w.MaxLenChars,
	}
}

// Policy returns the configured novelty policy.
func (e EngineConfig) Policy() reasoning.NoveltyPolicy {
	return reasoning.ParseNoveltyPolicy(e.NoveltyPolicy)
}

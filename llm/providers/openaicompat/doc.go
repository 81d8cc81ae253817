// Package openaicompat implements llm.Provider for any endpoint speaking the
// OpenAI Chat Completions format.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    BaseURL:      cfg.LLM.BaseURL,
//	    APIKey:       cfg.LLM.APIKey,
//	    DefaultModel: cfg.LLM.Model,
//	}, logger)
package openaicompat

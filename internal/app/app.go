// Package app bundles the services an orchestrator runs against.
package app

import "github.com/loop-index/forge/internal/domain"

// App is the record of service handles. It implements domain.App.
type App struct {
	Provider      domain.ProviderService
	Tools         domain.ToolService
	Conversations domain.ConversationService
	Templates     domain.TemplateService
	Suggestions   domain.SuggestionService
}

// New wires a service record.
func New(provider domain.ProviderService, tools domain.ToolService, conversations domain.ConversationService, templates domain.TemplateService, suggestions domain.SuggestionService) *App {
	return &App{
		Provider:      provider,
		Tools:         tools,
		Conversations: conversations,
		Templates:     templates,
		Suggestions:   suggestions,
	}
}

func (a *App) ProviderService() domain.ProviderService         { return a.Provider }
func (a *App) ToolService() domain.ToolService                 { return a.Tools }
func (a *App) ConversationService() domain.ConversationService { return a.Conversations }
func (a *App) TemplateService() domain.TemplateService         { return a.Templates }
func (a *App) SuggestionService() domain.SuggestionService     { return a.Suggestions }

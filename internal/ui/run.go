package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nissyi-gh/taskr/internal/connectivity"
	"github.com/nissyi-gh/taskr/internal/status"
)

// Service is Tasks plus per-call status notifications.
type Service interface {
	Tasks
	SubscribeStatus(fn func(status.Sync)) func()
}

// Notifier is Connectivity plus change notifications.
type Notifier interface {
	Connectivity
	Subscribe(fn func(connectivity.Event)) func()
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, svc Service, net Notifier, session Session) error {
	p := tea.NewProgram(NewModel(ctx, svc, net, session), tea.WithAltScreen(), tea.WithContext(ctx))

	unsubConn := net.Subscribe(func(ev connectivity.Event) { p.Send(connMsg(ev)) })
	defer unsubConn()
	unsubSync := svc.SubscribeStatus(func(s status.Sync) { p.Send(syncMsg(s)) })
	defer unsubSync()

	_, err := p.Run()
	return err
}

// Package mocks holds gomock doubles for the ports.
package mocks

//go:generate mockgen -destination=store.go -package=mocks github.com/alanyang/agent-queue/internal/port/agent Store
//go:generate mockgen -destination=eventbus.go -package=mocks github.com/alanyang/agent-queue/internal/port/eventbus ChangeFeed,Subscription
//go:generate mockgen -destination=locker.go -package=mocks github.com/alanyang/agent-queue/internal/port/locker Locker
//go:generate mockgen -destination=notifier.go -package=mocks github.com/alanyang/agent-queue/internal/port/notifier RosterNotifier

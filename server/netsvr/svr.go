package netsvr

import (
	"net/http"

	"github.com/zintix-labs/candyreels/server/app"
)

// NetSvr 路由 + 啟停。只交給最外層（server.Run）使用，其他層面向 NetRouter。
// NetSvr 同時是 app.Component，可直接交給 app.App 管理生命週期。
type NetSvr interface {
	NetRouter
	app.Component
	Address() string
}

// NetRouter 純路由行為，handler / 子模組只拿得到這一層，碰不到 Run/Shutdown。
type NetRouter interface {
	Use(middleware func(http.Handler) http.Handler)

	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Put(path string, h http.HandlerFunc)
	Delete(path string, h http.HandlerFunc)

	// Handle 掛載任意 http.Handler（所有 method），例如 promhttp
	Handle(path string, h http.Handler)

	Group(path string, fn func(NetRouter))
}

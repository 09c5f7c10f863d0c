// Copyright (C) 2025 Queueworks Ltd (mq@queueworks.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rest

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all MQ assistant routes with the router.
//
// Description:
//
//	Registers all /v1/mq/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Chat Endpoints:
//
//	POST   /v1/mq/chat - Run one conversational turn
//	DELETE /v1/mq/chat/:id - Close a chat session
//
// Resolution Endpoints:
//
//	POST /v1/mq/resolve - Deterministic queue resolution (no LLM)
//
// Fleet Endpoints:
//
//	GET /v1/mq/qmgrs - List queue managers
//	GET /v1/mq/version - List installations
//
// Health Endpoints:
//
//	GET /v1/mq/health - Health check
//	GET /v1/mq/ready - Readiness check (probes MQ REST connectivity)
//
// Example:
//
//	handlers := rest.NewHandlers(rest.HandlersConfig{...})
//
//	v1 := router.Group("/v1")
//	rest.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	mq := rg.Group("/mq")
	{
		// Conversation
		mq.POST("/chat", handlers.HandleChat)
		mq.DELETE("/chat/:id", handlers.HandleCloseSession)

		// Deterministic resolution
		mq.POST("/resolve", handlers.HandleResolve)

		// Fleet status
		mq.GET("/qmgrs", handlers.HandleManagers)
		mq.GET("/version", handlers.HandleVersion)

		// Health checks
		mq.GET("/health", handlers.HandleHealth)
		mq.GET("/ready", handlers.HandleReady)
	}
}

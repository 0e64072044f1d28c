package api

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.MonitorInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)

	monitor := s.router.Group("/monitor")
	{
		monitor.POST("/start", s.monitorHandler.Start)
		monitor.POST("/stop", s.monitorHandler.Stop)
		monitor.GET("/status", s.monitorHandler.Status)
	}

	alerts := s.router.Group("/alerts")
	{
		alerts.GET("/latest", s.alertsHandler.Latest)
		alerts.GET("/history", s.alertsHandler.History)
		alerts.GET("/counters", s.alertsHandler.Counters)
	}

	s.router.GET("/sources", s.monitorHandler.Sources)
	s.router.GET("/streams/:position", s.streamHandler.StreamMJPEG)
}

// Package logging builds the shell's zap logger.
//
// Production logs are JSON with sampling; development logs are colored
// console output at debug level. Components receive a *zap.Logger named
// after themselves, and entries carry the tab that wrote them:
//
//	log, _ := logging.New(logging.FromConfig(cfg.Logging))
//	detector := detect.New(detect.Options{Logger: log.ForTab(tab).For("detect")})
package logging

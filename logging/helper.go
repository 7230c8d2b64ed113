package logging

// NewLogger 创建一个默认的控制台 Logger（便于测试使用）
func NewLogger() Logger {
	builder := NewLoggingBuilder()
	builder.AddConsole()
	factory := builder.Build()
	return factory.CreateLogger("default")
}

// nopLogger 丢弃所有日志的 Logger。
// 容器核心默认使用它，保证库可以零配置嵌入。
type nopLogger struct{}

// NewNopLogger 创建丢弃所有日志的 Logger
func NewNopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) Trace(msg string, fields ...Field)             {}
func (nopLogger) Debug(msg string, fields ...Field)             {}
func (nopLogger) Info(msg string, fields ...Field)              {}
func (nopLogger) Warn(msg string, fields ...Field)              {}
func (nopLogger) Error(msg string, fields ...Field)             {}
func (nopLogger) Fatal(msg string, fields ...Field)             {}
func (nopLogger) Log(level LogLevel, msg string, fields ...Field) {}
func (l nopLogger) WithFields(fields ...Field) Logger           { return l }
func (l nopLogger) WithCategory(category string) Logger         { return l }

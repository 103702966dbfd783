/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package logging

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type LoggerTestSuite struct {
	suite.Suite
}

func (s *LoggerTestSuite) TestLevels() {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewWithCore(core).Named("producer")

	l.Tracef("this is tracef %s", "hello world")
	l.Debugf("debug message")
	l.Infof("this is infof %s", "hello world")
	l.Warnf("warn message %d", 2)
	l.Errorf("this is errorf %s", "hello world")

	s.Equal(3, logs.Len())
	entries := logs.All()
	s.Equal("this is infof hello world", entries[0].Message)
	s.Equal(zapcore.WarnLevel, entries[1].Level)
	s.Equal("producer", entries[2].LoggerName)
}

func (s *LoggerTestSuite) TestWithFields() {
	core, logs := observer.New(zapcore.DebugLevel)
	NewWithCore(core).With("item", 7).Debugf("added")
	s.Require().Equal(1, logs.Len())
	s.Equal(int64(7), logs.All()[0].ContextMap()["item"])
}

func (s *LoggerTestSuite) TestParseLevel() {
	for name, want := range map[string]zapcore.Level{
		"trace": zapcore.DebugLevel,
		"DEBUG": zapcore.DebugLevel,
		"":      zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	} {
		got, err := ParseLevel(name)
		s.NoError(err, name)
		s.Equal(want, got, name)
	}
	_, err := ParseLevel("loud")
	s.Error(err)
}

func (s *LoggerTestSuite) TestNewHonoursEnv() {
	s.T().Setenv(EnvLevel, "loud")
	_, err := New(DefaultConfig())
	s.Error(err)

	s.T().Setenv(EnvLevel, "error")
	l, err := New(Config{Level: "debug", OutputPaths: []string{"stderr"}})
	s.Require().NoError(err)
	s.False(l.Zap().Core().Enabled(zapcore.WarnLevel))
	s.True(l.Zap().Core().Enabled(zapcore.ErrorLevel))
}

func (s *LoggerTestSuite) TestNop() {
	l := NewNop()
	l.Errorf("dropped")
	l.Sync()
}

func TestLoggerTestSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

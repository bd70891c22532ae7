// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package commands

import (
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"

	"github.com/jaycherian/gcp-go-video-insights/internal/core/cor"
)

// PersistToBigQuery streams the value stored under a context key into a
// BigQuery table. The value may be a struct pointer or a slice of them.
type PersistToBigQuery struct {
	cor.BaseCommand
	client  *bigquery.Client
	dataset string
	table   string
	param   string
}

func NewPersistToBigQuery(name string, client *bigquery.Client, dataset string, table string, param string) *PersistToBigQuery {
	return &PersistToBigQuery{BaseCommand: *cor.NewBaseCommand(name), client: client, dataset: dataset, table: table, param: param}
}

func (s *PersistToBigQuery) IsExecutable(context cor.Context) bool {
	return context != nil && context.GetContext() != nil && context.Get(s.param) != nil
}

func (s *PersistToBigQuery) Execute(context cor.Context) {
	value := context.Get(s.param)

	i := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := i.Put(context.GetContext(), value); err != nil {
		s.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(s.GetName(), fmt.Errorf("bigquery insert into %s.%s failed: %w", s.dataset, s.table, err))
		return
	}

	s.GetSuccessCounter().Add(context.GetContext(), 1)
	slog.InfoContext(context.GetContext(), "persisted to bigquery", "dataset", s.dataset, "table", s.table)
	context.Add(cor.CtxOut, context.Get(cor.CtxIn))
}

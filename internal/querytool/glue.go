package querytool

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	gluetypes "github.com/aws/aws-sdk-go-v2/service/glue/types"
)

// GetTablesAPI is the part of the Glue client we use.
type GetTablesAPI interface {
	GetTables(ctx context.Context, params *glue.GetTablesInput, optFns ...func(*glue.Options)) (*glue.GetTablesOutput, error)
}

// GlueCatalog reads table metadata from the Glue Data Catalog.
type GlueCatalog struct {
	api GetTablesAPI
}

// NewGlueCatalog wraps a Glue client.
func NewGlueCatalog(api GetTablesAPI) *GlueCatalog {
	return &GlueCatalog{api: api}
}

// Tables lists every table of database, following pagination.
func (c *GlueCatalog) Tables(ctx context.Context, database string) ([]TableSchema, error) {
	var tables []TableSchema
	p := glue.NewGetTablesPaginator(c.api, &glue.GetTablesInput{DatabaseName: aws.String(database)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("glue get tables: %w", err)
		}
		for _, t := range page.TableList {
			tables = append(tables, tableSchema(t))
		}
	}
	return tables, nil
}

func tableSchema(t gluetypes.Table) TableSchema {
	ts := TableSchema{
		Table:       aws.ToString(t.Name),
		Description: aws.ToString(t.Description),
		Columns:     []Column{},
	}
	if t.StorageDescriptor != nil {
		for _, c := range t.StorageDescriptor.Columns {
			ts.Columns = append(ts.Columns, column(c))
		}
	}
	for _, c := range t.PartitionKeys {
		ts.Columns = append(ts.Columns, column(c))
	}
	return ts
}

func column(c gluetypes.Column) Column {
	return Column{
		Name:    aws.ToString(c.Name),
		Type:    aws.ToString(c.Type),
		Comment: aws.ToString(c.Comment),
	}
}

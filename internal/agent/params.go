package agent

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// Default Parameter Store names under which the deployment publishes the
// agent id and alias id.
const (
	DefaultAgentIDParameter    = "/bedrock-agent-data/Bedrock-agent-id"
	DefaultAgentAliasParameter = "/bedrock-agent-data/Bedrock-agent-alias-id"
)

// ParameterGetter is the part of the SSM client we use.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// IDs identifies an agent alias.
type IDs struct {
	AgentID string
	AliasID string
}

// ResolveIDs fills missing ids from Parameter Store. Ids already set on
// known are kept as-is.
func ResolveIDs(ctx context.Context, ssmc ParameterGetter, known IDs, idParam, aliasParam string) (IDs, error) {
	ids := known
	var err error
	if ids.AgentID == "" {
		if ids.AgentID, err = getParameter(ctx, ssmc, idParam); err != nil {
			return IDs{}, err
		}
	}
	if ids.AliasID == "" {
		if ids.AliasID, err = getParameter(ctx, ssmc, aliasParam); err != nil {
			return IDs{}, err
		}
	}
	log.Info().Str("agent_id", ids.AgentID).Str("alias_id", ids.AliasID).Msg("Agent ids resolved")
	return ids, nil
}

func getParameter(ctx context.Context, ssmc ParameterGetter, name string) (string, error) {
	if ssmc == nil || name == "" {
		return "", ErrNotConfigured
	}
	out, err := ssmc.GetParameter(ctx, &ssm.GetParameterInput{Name: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || aws.ToString(out.Parameter.Value) == "" {
		return "", fmt.Errorf("parameter %s is empty", name)
	}
	return aws.ToString(out.Parameter.Value), nil
}

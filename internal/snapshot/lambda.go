package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/sts"
)

// LambdaRedirect toggles the serving Lambda's environment. When a role
// is configured and the current identity does not already hold it, the
// role is assumed before touching the function.
type LambdaRedirect struct {
	function string
	role     string
	sess     *session.Session
}

// NewLambdaRedirect creates a redirect for the given function
func NewLambdaRedirect(region, function, role string) (*LambdaRedirect, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &LambdaRedirect{function: function, role: role, sess: sess}, nil
}

// SetEnvironment replaces the function's environment variables with vars
func (r *LambdaRedirect) SetEnvironment(ctx context.Context, vars map[string]string) error {
	client, err := r.lambdaClient(ctx)
	if err != nil {
		return err
	}
	_, err = client.UpdateFunctionConfigurationWithContext(ctx, &lambda.UpdateFunctionConfigurationInput{
		FunctionName: aws.String(r.function),
		Environment:  &lambda.Environment{Variables: aws.StringMap(vars)},
	})
	if err != nil {
		return fmt.Errorf("update function %s configuration: %w", r.function, err)
	}
	return nil
}

func (r *LambdaRedirect) lambdaClient(ctx context.Context) (*lambda.Lambda, error) {
	if r.role == "" {
		return lambda.New(r.sess), nil
	}

	stsClient := sts.New(r.sess)
	ident, err := stsClient.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("get caller identity: %w", err)
	}
	if strings.HasSuffix(aws.StringValue(ident.Arn), r.role) {
		return lambda.New(r.sess), nil
	}

	roleArn := fmt.Sprintf("arn:aws:iam::%s:role/%s", aws.StringValue(ident.Account), r.role)
	res, err := stsClient.AssumeRoleWithContext(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleArn),
		RoleSessionName: aws.String("kbsync-readonly-refresh"),
	})
	if err != nil {
		return nil, fmt.Errorf("assume role %s: %w", roleArn, err)
	}

	creds := credentials.NewStaticCredentials(
		aws.StringValue(res.Credentials.AccessKeyId),
		aws.StringValue(res.Credentials.SecretAccessKey),
		aws.StringValue(res.Credentials.SessionToken),
	)
	return lambda.New(r.sess, &aws.Config{Credentials: creds}), nil
}

package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/BboySticker/serverless/notifier"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// DefaultKeyAttr is the default partition key attribute name.
	DefaultKeyAttr = "emailId"

	// DefaultLinkAttr is the default attribute name for the bill link.
	DefaultLinkAttr = "link"

	// DefaultExpirationAttr is the default attribute name for the token
	// expiry. The table should have TTL enabled on this attribute.
	DefaultExpirationAttr = "expirationTime"
)

// ErrSchemaMismatch is returned when a stored item lacks a required attribute
// or holds it with an unexpected type.
var ErrSchemaMismatch = errors.New("token item does not match the expected schema")

// API is the subset of the DynamoDB client used by [Client].
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	DescribeTimeToLive(ctx context.Context, params *dynamodb.DescribeTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTimeToLiveOutput, error)
}

// Client is a DynamoDB-backed implementation of [notifier.TokenStore].
//
// Use [New] to create a Client, [Client.Connect] to initialize the underlying
// DynamoDB connection, and [Client.Init] to validate the table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

// New creates a new Client configured with the given AWS config, table name,
// and optional options. Call [Client.Connect] on the returned client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided to [New].
// It must be called before any other Client methods, and must complete before
// the Client is used concurrently.
func (c *Client) Connect() error {
	if c.tableName == "" {
		return errors.New("table name cannot be empty")
	}

	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
		return nil
	}

	if c.awsCfg == nil {
		return errors.New("AWS config cannot be nil")
	}

	c.client = dynamodb.NewFromConfig(*c.awsCfg)

	return nil
}

// Init validates the DynamoDB table schema. It checks that the table exists
// and is active, that its primary key is a simple key on the recipient key
// attribute, and (unless disabled with [WithTTLValidation]) that TTL is
// enabled on the expiry attribute.
//
// Pass skipSchemaValidation true to skip all checks and return immediately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	response, err := c.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	})
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if response.Table == nil || len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != c.opts.keyAttr {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), c.opts.keyAttr)
	}

	if len(response.Table.KeySchema) > 1 {
		return fmt.Errorf("table %s has a composite primary key, expected a simple key on %s", c.tableName, c.opts.keyAttr)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	if !c.opts.validateTTL {
		return nil
	}

	ttlResponse, err := c.client.DescribeTimeToLive(ctx, &dynamodb.DescribeTimeToLiveInput{
		TableName: aws.String(c.tableName),
	})
	if err != nil {
		return fmt.Errorf("failed to describe TTL for table %s: %w", c.tableName, err)
	}

	if ttlResponse.TimeToLiveDescription == nil {
		return fmt.Errorf("table %s has no TTL description", c.tableName)
	}

	if ttlResponse.TimeToLiveDescription.TimeToLiveStatus != dynamodbtypes.TimeToLiveStatusEnabled {
		return fmt.Errorf("table %s has TTL status %s (expected %s)", c.tableName, ttlResponse.TimeToLiveDescription.TimeToLiveStatus, dynamodbtypes.TimeToLiveStatusEnabled)
	}

	if aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName) != c.opts.expirationAttr {
		return fmt.Errorf("TTL attribute name for table %s is %s, expected %s", c.tableName, aws.ToString(ttlResponse.TimeToLiveDescription.AttributeName), c.opts.expirationAttr)
	}

	return nil
}

// FindToken retrieves the token for recipient. It returns (nil, nil) when the
// recipient has no token. The returned token may already be expired: TTL
// deletion is not immediate.
func (c *Client) FindToken(ctx context.Context, recipient string) (*notifier.Token, error) {
	if recipient == "" {
		return nil, errors.New("recipient cannot be empty")
	}

	input := &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]dynamodbtypes.AttributeValue{
			c.opts.keyAttr: &dynamodbtypes.AttributeValueMemberS{Value: recipient},
		},
	}

	if c.opts.consistentRead {
		input.ConsistentRead = aws.Bool(true)
	}

	output, err := c.client.GetItem(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to get token from DynamoDB table %s: %w", c.tableName, err)
	}

	if output.Item == nil {
		return nil, nil //nolint:nilnil
	}

	expiresAt, err := getNumberValue(output.Item[c.opts.expirationAttr])
	if err != nil {
		return nil, fmt.Errorf("%w: attribute %s of token for %s: %w", ErrSchemaMismatch, c.opts.expirationAttr, recipient, err)
	}

	return &notifier.Token{
		RecipientKey: recipient,
		Link:         getStringValue(output.Item[c.opts.linkAttr]),
		ExpiresAt:    expiresAt,
	}, nil
}

// CreateToken writes token with PutItem, replacing any existing item.
func (c *Client) CreateToken(ctx context.Context, token *notifier.Token) error {
	if err := validateToken(token); err != nil {
		return err
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]dynamodbtypes.AttributeValue{
			c.opts.keyAttr:        &dynamodbtypes.AttributeValueMemberS{Value: token.RecipientKey},
			c.opts.linkAttr:       &dynamodbtypes.AttributeValueMemberS{Value: token.Link},
			c.opts.expirationAttr: &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatInt(token.ExpiresAt, 10)},
		},
	}

	if _, err := c.client.PutItem(ctx, input); err != nil {
		return fmt.Errorf("failed to write token to DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// UpdateToken sets the link and expiry of the recipient's token with
// UpdateItem. DynamoDB creates the item if it has since been removed by TTL.
func (c *Client) UpdateToken(ctx context.Context, token *notifier.Token) error {
	if err := validateToken(token); err != nil {
		return err
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]dynamodbtypes.AttributeValue{
			c.opts.keyAttr: &dynamodbtypes.AttributeValueMemberS{Value: token.RecipientKey},
		},
		UpdateExpression: aws.String("SET #link = :link, #ttl = :ttl"),
		ExpressionAttributeNames: map[string]string{
			"#link": c.opts.linkAttr,
			"#ttl":  c.opts.expirationAttr,
		},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":link": &dynamodbtypes.AttributeValueMemberS{Value: token.Link},
			":ttl":  &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatInt(token.ExpiresAt, 10)},
		},
		ReturnValues: dynamodbtypes.ReturnValueUpdatedNew,
	}

	if _, err := c.client.UpdateItem(ctx, input); err != nil {
		return fmt.Errorf("failed to update token in DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// DeleteExpired removes every token whose expiry is at or before the current
// time, and returns the number of items deleted. It is only needed for tables
// that do not have TTL enabled.
//
// Each delete is conditional on the item still being expired, so a token
// refreshed after the scan is left in place.
func (c *Client) DeleteExpired(ctx context.Context) (int, error) {
	now := &dynamodbtypes.AttributeValueMemberN{Value: strconv.FormatInt(c.opts.clock().Unix(), 10)}

	input := &dynamodb.ScanInput{
		TableName:            aws.String(c.tableName),
		FilterExpression:     aws.String("#ttl <= :now"),
		ProjectionExpression: aws.String("#key"),
		ExpressionAttributeNames: map[string]string{
			"#key": c.opts.keyAttr,
			"#ttl": c.opts.expirationAttr,
		},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":now": now,
		},
	}

	deleted := 0

	for {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return deleted, fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		for _, item := range output.Items {
			ok, err := c.deleteIfExpired(ctx, item[c.opts.keyAttr], now)
			if err != nil {
				return deleted, err
			}

			if ok {
				deleted++
			}
		}

		if output.LastEvaluatedKey == nil {
			return deleted, nil
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
}

// deleteIfExpired deletes the item with the given key if its expiry is still
// at or before now. It reports false when the item was refreshed or removed
// since it was scanned.
func (c *Client) deleteIfExpired(ctx context.Context, key, now dynamodbtypes.AttributeValue) (bool, error) {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]dynamodbtypes.AttributeValue{
			c.opts.keyAttr: key,
		},
		ConditionExpression: aws.String("#ttl <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": c.opts.expirationAttr,
		},
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":now": now,
		},
	}

	if _, err := c.client.DeleteItem(ctx, input); err != nil {
		var ccf *dynamodbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}

		return false, fmt.Errorf("failed to delete expired token from DynamoDB table %s: %w", c.tableName, err)
	}

	return true, nil
}

func validateToken(token *notifier.Token) error {
	if token == nil {
		return errors.New("token cannot be nil")
	}

	if token.RecipientKey == "" {
		return errors.New("token recipient key cannot be empty")
	}

	return nil
}

// getStringValue extracts the string value from a DynamoDB AttributeValue.
// It returns an empty string if the AttributeValue is not of type AttributeValueMemberS.
func getStringValue(attr dynamodbtypes.AttributeValue) string {
	if attrValue, ok := attr.(*dynamodbtypes.AttributeValueMemberS); ok {
		return attrValue.Value
	}

	return ""
}

// getNumberValue parses an integer from a DynamoDB number attribute.
func getNumberValue(attr dynamodbtypes.AttributeValue) (int64, error) {
	if attr == nil {
		return 0, errors.New("attribute is missing")
	}

	attrValue, ok := attr.(*dynamodbtypes.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute has type %T, expected number", attr)
	}

	n, err := strconv.ParseInt(attrValue.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("attribute is not an integer: %w", err)
	}

	return n, nil
}

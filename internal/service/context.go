package service

import "context"

type contextKey string

const operatorKey contextKey = "operator"

// OperatorInfo is the identity carried by a verified access token.
type OperatorInfo struct {
	UserID   int64
	Username string
}

func WithOperator(ctx context.Context, op *OperatorInfo) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

func GetOperatorInfo(ctx context.Context) *OperatorInfo {
	val, ok := ctx.Value(operatorKey).(*OperatorInfo)
	if !ok {
		return nil
	}
	return val
}

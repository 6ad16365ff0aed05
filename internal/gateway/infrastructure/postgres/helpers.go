package postgres

import (
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	vo "cardgate/internal/common/value_objects"
)

func minorUnitsToNumeric(amount vo.MinorUnits) pgtype.Numeric {
	value := amount.Decimal()
	return pgtype.Numeric{
		Int:   value.Coefficient(),
		Exp:   value.Exponent(),
		Valid: true,
	}
}

func numericToMinorUnits(value pgtype.Numeric) (vo.MinorUnits, error) {
	if !value.Valid {
		return 0, fmt.Errorf("numeric is NULL")
	}
	if value.NaN {
		return 0, fmt.Errorf("numeric is NaN")
	}
	if value.InfinityModifier != pgtype.Finite {
		return 0, fmt.Errorf("numeric is %s", value.InfinityModifier)
	}

	intVal := value.Int
	if intVal == nil {
		intVal = big.NewInt(0)
	}

	return vo.MinorUnitsFromDecimal(decimal.NewFromBigInt(intVal, value.Exp))
}

func timeToTimestamptz(value time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{
		Time:  value,
		Valid: true,
	}
}

func timestamptzToTime(value pgtype.Timestamptz) (time.Time, error) {
	if !value.Valid {
		return time.Time{}, fmt.Errorf("timestamp is NULL")
	}
	if value.InfinityModifier != pgtype.Finite {
		return time.Time{}, fmt.Errorf("timestamp is %s", value.InfinityModifier)
	}
	return value.Time, nil
}

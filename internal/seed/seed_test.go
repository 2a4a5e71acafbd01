package seed

import (
	"testing"

	"github.com/shopspring/decimal"
	rewardconfigdomain "github.com/smallbiznis/rewardzway/internal/rewardconfig/domain"
	"github.com/smallbiznis/rewardzway/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestEnsureDefaultConfigurations(t *testing.T) {
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	fx := testutil.NewFixtures(t, db, node)
	fx.Config(rewardconfigdomain.NameTDS, rewardconfigdomain.KindRate, 0, "5")

	require.NoError(t, EnsureDefaultConfigurations(db, node))
	require.NoError(t, EnsureDefaultConfigurations(db, node))

	var rows []rewardconfigdomain.Configuration
	require.NoError(t, db.Order("name").Find(&rows).Error)
	require.Len(t, rows, 3)

	byName := map[string]rewardconfigdomain.Configuration{}
	for _, row := range rows {
		byName[row.Name] = row
	}
	require.True(t, byName[rewardconfigdomain.NameTDS].Value.Equal(decimal.NewFromInt(5)))
	require.True(t, byName[rewardconfigdomain.NameRTL].DecimalValue.Equal(decimal.RequireFromString("0.0673")))
	require.True(t, byName[rewardconfigdomain.NameRPS].DecimalValue.Equal(decimal.RequireFromString("0.1")))
}

func TestEnsureDefaultConfigurationsRequiresHandles(t *testing.T) {
	require.Error(t, EnsureDefaultConfigurations(nil, testutil.Node(t)))
	require.Error(t, EnsureDefaultConfigurations(testutil.OpenDB(t), nil))
}

package repos // 仓储包

import ( // 依赖导入
	"context" // 上下文处理
	"errors"  // 错误判断
	"time"    // 时间类型

	"github.com/jackc/pgx/v5"        // pgx 接口
	"github.com/jackc/pgx/v5/pgconn" // 连接命令结果

	"frontdesk-queue-system/core/store" // 存储错误定义
)

type DBTX interface { // 数据库事务/连接抽象
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error) // 执行语句
	Query(context.Context, string, ...any) (pgx.Rows, error)         // 查询多行
	QueryRow(context.Context, string, ...any) pgx.Row                // 查询单行
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults          // 批量执行
}

const uniqueViolation = "23505" // 唯一约束冲突

type Option func(*options) // 仓储选项

type options struct { // 仓储配置
	now               func() time.Time       // 时钟
	ticketNumber      func(time.Time) string // 工单号生成器
	appointmentNumber func(time.Time) string // 预约号生成器
	activityLimit     int                    // 活动日志上限
}

func defaultOptions() options { // 默认配置
	return options{
		now:               func() time.Time { return time.Now().UTC() },
		ticketNumber:      store.NewTicketNumber,
		appointmentNumber: store.NewAppointmentNumber,
		activityLimit:     store.DefaultActivityLimit,
	}
}

func WithClock(now func() time.Time) Option { // 注入时钟
	return func(o *options) { o.now = now }
}

func WithTicketNumbers(next func(time.Time) string) Option { // 注入工单号生成器
	return func(o *options) { o.ticketNumber = next }
}

func WithAppointmentNumbers(next func(time.Time) string) Option { // 注入预约号生成器
	return func(o *options) { o.appointmentNumber = next }
}

func WithActivityLimit(limit int) Option { // 设置活动日志上限
	return func(o *options) {
		if limit > 0 {
			o.activityLimit = limit
		}
	}
}

func isUniqueViolation(err error, constraint string) bool { // 判断唯一约束冲突
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && (constraint == "" || pgErr.ConstraintName == constraint)
}

func notFound(err error) error { // 统一未找到错误
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) { // 扫描多行
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

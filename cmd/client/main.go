package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"bms-gateway/internal/client"
	"bms-gateway/internal/protocol/dalybms"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9600", "gateway address")
	deviceID := flag.String("device", "bms-demo-01", "device id used for LOGIN")
	token := flag.String("token", "", "device token")
	count := flag.Int("n", 5, "number of frames to send")
	interval := flag.Duration("interval", time.Second, "delay between frames")
	flag.Parse()

	fmt.Println("启动测试客户端...")
	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Printf("连接服务器失败: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("已连接到服务器 %s\n", *addr)

	reader := bufio.NewReader(conn)
	send := func(line string) string {
		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			fmt.Printf("发送失败: %v\n", err)
			os.Exit(1)
		}
		resp, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("读取响应失败: %v\n", err)
			os.Exit(1)
		}
		return resp
	}

	// 1. 登入
	fmt.Printf(">> LOGIN %s\n", *deviceID)
	fmt.Printf("<< %s", send(fmt.Sprintf("LOGIN %s %s", *deviceID, *token)))

	// 2. 发送数据帧
	builder := client.NewLineBuilder()
	for i := 0; i < *count; i++ {
		line := builder.Build(sampleValues(i))
		fmt.Printf(">> 发送数据帧 [%d]...\n", i+1)
		fmt.Printf("<< %s", send(line))
		time.Sleep(*interval)
	}

	fmt.Printf("<< %s", send("PING"))

	// 3. 登出
	fmt.Println(">> 发送登出请求...")
	fmt.Printf("<< %s", send("LOGOUT"))

	fmt.Println("测试完成，关闭连接")
}

// sampleValues 生成一组缓慢放电的 16 串电池数据
func sampleValues(i int) client.FrameValues {
	cells := make([]int, 16)
	maxV, minV := 0, 1<<30
	maxCell, minCell := 0, 0
	for k := range cells {
		cells[k] = 3300 - i*2 + rand.Intn(15)
		if cells[k] > maxV {
			maxV, maxCell = cells[k], k+1
		}
		if cells[k] < minV {
			minV, minCell = cells[k], k+1
		}
	}
	sum := 0
	for _, v := range cells {
		sum += v
	}
	temp := 25 + i

	return client.FrameValues{
		CumulativeVoltage: float64(sum) / 1000,
		GatherVoltage:     float64(sum) / 1000,
		Current:           -12.5,
		SOC:               80 - float64(i)*0.5,
		MaxCellVoltage:    maxV,
		MaxVoltageCell:    maxCell,
		MinCellVoltage:    minV,
		MinVoltageCell:    minCell,
		MaxTemp:           temp + 2,
		MaxTempCell:       1,
		MinTemp:           temp,
		MinTempCell:       2,
		State:             dalybms.StateDischarge,
		ChargeMOS:         1,
		DischargeMOS:      1,
		LifeCycles:        42,
		RemainCapacity:    80 - float64(i)*0.5,
		TempSensorCount:   2,
		LoadStatus:        1,
		FrameNumber:       i,
		CellVoltages:      cells,
		CellTemps:         []int{temp + 2, temp},
	}
}
